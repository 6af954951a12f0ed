package mcp

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil search service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingSearchService)
	})

	t.Run("search only creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.Handler())
	})

	t.Run("all ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Search:      &mockSearchService{},
			Vectors:     &mockVectorService{},
			Maintenance: &mockMaintenanceService{},
			Scheduler:   &mockScheduler{},
		})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	var nilPorts *Ports
	assert.ErrorIs(t, nilPorts.Validate(), ErrMissingSearchService)
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingSearchService)
	assert.ErrorIs(t, (&Ports{Maintenance: &mockMaintenanceService{}}).Validate(), ErrMissingSearchService)
	assert.NoError(t, (&Ports{Search: &mockSearchService{}}).Validate())
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	server := newTestServer(t, &Ports{Search: &mockSearchService{}})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()

	// Any status will do; the request only proves the listener is served.
	req, err := http.NewRequest(http.MethodPut, "http://"+ln.Addr().String(), http.NoBody)
	require.NoError(t, err)
	resp, err := (&http.Client{Timeout: 2 * time.Second}).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_RunHTTPBadAddress(t *testing.T) {
	server := newTestServer(t, &Ports{Search: &mockSearchService{}})

	err := server.RunHTTP(context.Background(), "256.0.0.1:bad")
	assert.Error(t, err)
}
