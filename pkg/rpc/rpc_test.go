package rpc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

type echoParams struct {
	Text string `json:"text"`
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer()
	s.Register("Echo.Say", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p echoParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return map[string]string{"text": p.Text, "call_id": logger.RequestID(ctx)}, nil
	})
	s.Register("Echo.Missing", func(ctx context.Context, raw json.RawMessage) (any, error) {
		return nil, apperrors.NotFound(7)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ServeListener(ln)
	}()
	t.Cleanup(func() {
		s.Stop()
		<-done
	})
	return s, ln.Addr().String()
}

func TestCallRoundTrip(t *testing.T) {
	s, addr := startServer(t)
	assert.Equal(t, 2, s.MethodCount())

	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	var out map[string]string
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "hello"}, &out))
	assert.Equal(t, "hello", out["text"])
	assert.NotEmpty(t, out["call_id"])
}

func TestCallErrors(t *testing.T) {
	_, addr := startServer(t)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(context.Background(), "Echo.Missing", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = c.Call(context.Background(), "Nope.Nothing", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Contains(t, err.Error(), "unknown method")
}

func TestConcurrentCallsShareConnection(t *testing.T) {
	_, addr := startServer(t)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out map[string]string
			assert.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "x"}, &out))
			assert.Equal(t, "x", out["text"])
		}()
	}
	wg.Wait()
}

func TestStopClosesOpenConnections(t *testing.T) {
	s := NewServer()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ln) }()

	c, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.Error(t, c.Call(context.Background(), "Unknown.Method", nil, nil))

	s.Stop()
	assert.NoError(t, <-done)
	assert.Error(t, c.Call(context.Background(), "Unknown.Method", nil, nil))
}
