// Package client provides the library side of the wire protocol: it opens a
// TCP connection, sends one request at a time, and parses exactly one
// response per request.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"

	"github.com/jassi-singh/aetherdb/internal/engine"
	"github.com/jassi-singh/aetherdb/internal/wire"
)

// ServerError wraps the textual Err payload of a server response.
type ServerError struct {
	Msg string
}

func (e *ServerError) Error() string {
	return e.Msg
}

// Client is a connection to a running server. It is not safe for
// concurrent use; open one client per goroutine.
type Client struct {
	conn net.Conn
	dec  *json.Decoder
	w    *bufio.Writer
}

// Connect dials the server at addr.
func Connect(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{
		conn: conn,
		dec:  json.NewDecoder(bufio.NewReader(conn)),
		w:    bufio.NewWriter(conn),
	}, nil
}

func (c *Client) send(req wire.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// Get fetches the value bound to key. An absent key reports
// engine.ErrKeyNotFound.
func (c *Client) Get(key string) (string, error) {
	if err := c.send(wire.Request{Get: &key}); err != nil {
		return "", err
	}
	var resp wire.GetResponse
	if err := c.dec.Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to parse get response: %w", err)
	}
	if resp.Err != "" {
		return "", &ServerError{Msg: resp.Err}
	}
	if resp.Value == nil {
		return "", engine.ErrKeyNotFound
	}
	return *resp.Value, nil
}

// Set binds value to key on the server.
func (c *Client) Set(key, value string) error {
	if err := c.send(wire.Request{Set: &wire.KV{Key: key, Value: value}}); err != nil {
		return err
	}
	var resp wire.AckResponse
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("failed to parse set response: %w", err)
	}
	if resp.Err != "" {
		return &ServerError{Msg: resp.Err}
	}
	return nil
}

// Remove deletes the binding for key. Removing an absent key reports
// engine.ErrKeyNotFound.
func (c *Client) Remove(key string) error {
	if err := c.send(wire.Request{Rm: &key}); err != nil {
		return err
	}
	var resp wire.AckResponse
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("failed to parse rm response: %w", err)
	}
	if resp.Err == engine.ErrKeyNotFound.Error() {
		return engine.ErrKeyNotFound
	}
	if resp.Err != "" {
		return &ServerError{Msg: resp.Err}
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
