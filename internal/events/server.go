package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"
)

// EmbeddedServer wraps a local NATS server so the module runs without any
// external message broker; cmd/solarb-engine starts it whenever the
// events.embed setting is true (the common case for a standalone
// deployment).
type EmbeddedServer struct {
	srv *server.Server
	log zerolog.Logger
}

// StartEmbedded boots an in-process NATS server bound to host:port and
// blocks until it is ready for connections or readyTimeout elapses.
func StartEmbedded(host string, port int, readyTimeout time.Duration, log zerolog.Logger) (*EmbeddedServer, error) {
	opts := &server.Options{
		Host:      host,
		Port:      port,
		NoSigs:    true,
		JetStream: false,
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	srv.Start()
	if !srv.ReadyForConnections(readyTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %s", readyTimeout)
	}

	log = log.With().Str("component", "events_embedded_server").Logger()
	log.Info().Str("addr", srv.Addr().String()).Msg("embedded nats server ready")

	return &EmbeddedServer{srv: srv, log: log}, nil
}

// ClientURL returns the URL a Bus should Connect to for this server.
func (e *EmbeddedServer) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the embedded server, closing connected clients, and
// waits for it to finish.
func (e *EmbeddedServer) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
	e.log.Info().Msg("embedded nats server stopped")
}
