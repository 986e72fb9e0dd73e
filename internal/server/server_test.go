// Package server provides end-to-end tests driving the TCP front end with
// the real client library and the log-structured engine.
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jassi-singh/aetherdb/internal/client"
	"github.com/jassi-singh/aetherdb/internal/config"
	"github.com/jassi-singh/aetherdb/internal/engine"
	"github.com/jassi-singh/aetherdb/internal/pool"
)

// startServer runs a server on an ephemeral port and returns its address.
func startServer(t *testing.T) string {
	t.Helper()

	cfg := config.Default()
	cfg.DATA_DIR = t.TempDir()
	store, err := engine.NewStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	workers, err := pool.NewSharedQueue(4)
	require.NoError(t, err)
	t.Cleanup(workers.Close)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go New(store, workers).Serve(listener)
	return listener.Addr().String()
}

func TestServer_SetGetRm(t *testing.T) {
	addr := startServer(t)

	c, err := client.Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("foo", "bar"))

	value, err := c.Get("foo")
	require.NoError(t, err)
	require.Equal(t, "bar", value)

	require.NoError(t, c.Remove("foo"))

	_, err = c.Get("foo")
	require.ErrorIs(t, err, engine.ErrKeyNotFound)

	err = c.Remove("foo")
	require.ErrorIs(t, err, engine.ErrKeyNotFound)
}

func TestServer_PipelinedRequests(t *testing.T) {
	addr := startServer(t)

	c, err := client.Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	// Many requests over one connection, answered in order.
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("key%d", i), fmt.Sprintf("value%d", i)))
	}
	for i := 0; i < 50; i++ {
		value, err := c.Get(fmt.Sprintf("key%d", i))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("value%d", i), value)
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	addr := startServer(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c, err := client.Connect(addr)
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()

			key := fmt.Sprintf("client%d", id)
			for j := 0; j < 25; j++ {
				if err := c.Set(key, fmt.Sprintf("v%d", j)); err != nil {
					errs <- err
					return
				}
				if _, err := c.Get(key); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent client error: %v", err)
	}

	c, err := client.Connect(addr)
	require.NoError(t, err)
	defer c.Close()
	for i := 0; i < 8; i++ {
		value, err := c.Get(fmt.Sprintf("client%d", i))
		require.NoError(t, err)
		require.Equal(t, "v24", value)
	}
}

// A connection sending garbage is dropped; the server keeps serving others.
func TestServer_SurvivesMalformedRequest(t *testing.T) {
	addr := startServer(t)

	raw, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = raw.Write([]byte(`{"Explode":true}`))
	require.NoError(t, err)
	raw.Close()

	c, err := client.Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("still", "alive"))
	value, err := c.Get("still")
	require.NoError(t, err)
	require.Equal(t, "alive", value)
}

func TestServer_KeyNotFoundMessage(t *testing.T) {
	addr := startServer(t)

	c, err := client.Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Remove("missing")
	require.ErrorIs(t, err, engine.ErrKeyNotFound)
	require.Equal(t, "Key not found", err.Error())

	var srvErr *client.ServerError
	require.False(t, errors.As(err, &srvErr), "canonical key-not-found must not surface as a generic server error")
}
