// Package storage provides file storage primitives for the key-value store:
// buffered readers and writers that track their absolute byte offset, and
// management of the numbered log files in a data directory.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// PosReader wraps a file with a buffered reader that tracks the absolute
// offset of the next byte Read will return. The engine records byte ranges
// at write time and must later seek exactly to them, so the offset has to
// stay correct across seeks and partial reads.
type PosReader struct {
	file *os.File
	r    *bufio.Reader
	pos  int64
}

// NewPosReader wraps an open file, starting at its current offset.
func NewPosReader(file *os.File) (*PosReader, error) {
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to query file offset: %w", err)
	}
	return &PosReader{
		file: file,
		r:    bufio.NewReader(file),
		pos:  pos,
	}, nil
}

// Read implements io.Reader, advancing the tracked offset.
func (r *PosReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.pos += int64(n)
	return n, err
}

// Seek moves the reader to an absolute offset and discards buffered data.
func (r *PosReader) Seek(offset int64) (int64, error) {
	pos, err := r.file.Seek(offset, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("failed to seek to offset %d: %w", offset, err)
	}
	r.r.Reset(r.file)
	r.pos = pos
	return pos, nil
}

// Pos returns the absolute offset of the next byte to be read.
func (r *PosReader) Pos() int64 {
	return r.pos
}

// Close closes the underlying file.
func (r *PosReader) Close() error {
	return r.file.Close()
}

// PosWriter wraps a file with a buffered writer that tracks the absolute
// offset of the next byte to be written, counting bytes still sitting in
// the user-space buffer.
type PosWriter struct {
	file *os.File
	w    *bufio.Writer
	pos  int64
}

// NewPosWriter wraps an open file, positioning at its end so appends are
// recorded at the right offset.
func NewPosWriter(file *os.File) (*PosWriter, error) {
	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to seek to end of file: %w", err)
	}
	return &PosWriter{
		file: file,
		w:    bufio.NewWriter(file),
		pos:  pos,
	}, nil
}

// Write implements io.Writer, advancing the tracked offset.
func (w *PosWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write %d bytes at offset %d: %w", len(p), w.pos, err)
	}
	return n, nil
}

// Flush pushes buffered bytes into the OS page cache.
func (w *PosWriter) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush write buffer: %w", err)
	}
	return nil
}

// Pos returns the absolute offset the next Write will land at.
func (w *PosWriter) Pos() int64 {
	return w.pos
}

// Close flushes remaining buffered data and closes the file.
func (w *PosWriter) Close() error {
	if err := w.Flush(); err != nil {
		slog.Error("storage: failed to flush buffer before close",
			"error", err)
		// Continue to close the file even if flush fails
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
