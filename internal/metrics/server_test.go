package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9999, log)

	assert.NotNil(t, server)
	assert.Equal(t, 9999, server.port)
	assert.NotNil(t, server.hub)
	assert.Nil(t, server.server)
}

func TestServerStart(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9998, log)

	require.NoError(t, server.Start())
	assert.NotNil(t, server.server)

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestHealthzEndpoint(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9997, log)

	require.NoError(t, server.Start())
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/healthz", 9997))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"healthy"`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestMetricsEndpoint(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9996, log)

	RecordDecision(true)

	require.NoError(t, server.Start())
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", 9996))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "solarb_decisions_admitted_total")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestServerShutdown_StopsAcceptingRequests(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9995, log)

	require.NoError(t, server.Start())
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	time.Sleep(100 * time.Millisecond)
	_, err := http.Get(fmt.Sprintf("http://localhost:%d/healthz", 9995))
	assert.Error(t, err)
}

func TestShutdownWithoutStart(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9994, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestHub_AccessibleBeforeStart(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	server := NewServer(9993, log)

	assert.NotNil(t, server.Hub())
	assert.Equal(t, 0, server.Hub().ClientCount())
}
