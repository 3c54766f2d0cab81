package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/solarb/engine/internal/audit"
)

const maxLineBytes = 1 << 20 // 1 MiB, generous headroom over a CreateBot config payload

// Server accepts TCP connections and serves the control protocol: one
// JSON Request per line in, one JSON Response per line out.
type Server struct {
	addr    string
	manager Manager
	log     zerolog.Logger
	audit   *audit.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
}

func NewServer(addr string, manager Manager, log zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		manager: manager,
		log:     log.With().Str("component", "control_server").Logger(),
		conns:   make(map[net.Conn]struct{}),
	}
}

// WithAudit attaches an audit trail that records every bot-lifecycle and
// maintenance command this server dispatches. Optional: a Server with no
// audit logger attached simply skips recording.
func (s *Server) WithAudit(logger *audit.Logger) *Server {
	s.audit = logger
	return s
}

// Serve binds the listener and accepts connections until ctx is
// cancelled or Shutdown is called. Blocks; run it in a goroutine.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.serveOn(ctx, ln)
}

// serveOn runs the accept loop against an already-bound listener,
// letting tests supply one bound to an ephemeral port.
func (s *Server) serveOn(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("control server listening")

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.trackConn(conn, true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.trackConn(conn, false)
			s.handleConn(ctx, conn)
		}()
	}
	wg.Wait()
	return nil
}

// Shutdown closes the listener and every tracked connection.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
		_ = conn.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.log.Debug().Str("remote", remote).Msg("control connection opened")
	defer s.log.Debug().Str("remote", remote).Msg("control connection closed")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = encoder.Encode(errorResponse("malformed request: %v", err))
			continue
		}

		resp := s.dispatch(ctx, req, remote)
		if err := encoder.Encode(resp); err != nil {
			s.log.Warn().Err(err).Str("remote", remote).Msg("failed to write response")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Debug().Err(err).Str("remote", remote).Msg("control connection read error")
	}
}

func (s *Server) dispatch(ctx context.Context, req Request, remote string) Response {
	switch req.Command {
	case CommandPing:
		if err := s.manager.Ping(ctx); err != nil {
			return errorResponse("ping: %v", err)
		}
		return Response{Type: ResponsePong}

	case CommandListBots:
		bots, err := s.manager.ListBots(ctx)
		if err != nil {
			return errorResponse("list bots: %v", err)
		}
		return Response{Type: ResponseBotList, Bots: bots}

	case CommandGetBotStatus:
		status, err := s.manager.GetBotStatus(ctx, req.ID)
		if err != nil {
			return errorResponse("get bot status %q: %v", req.ID, err)
		}
		return Response{Type: ResponseBotStatus, Bot: &status}

	case CommandStartBot:
		err := s.manager.StartBot(ctx, req.ID, req.Config)
		s.record(ctx, audit.EventBotStarted, req.ID, remote, "start bot", err)
		if err != nil {
			return errorResponse("start bot %q: %v", req.ID, err)
		}
		return Response{Type: ResponseOK}

	case CommandStopBot:
		err := s.manager.StopBot(ctx, req.ID)
		s.record(ctx, audit.EventBotStopped, req.ID, remote, "stop bot", err)
		if err != nil {
			return errorResponse("stop bot %q: %v", req.ID, err)
		}
		return Response{Type: ResponseOK}

	case CommandGetBotMetrics:
		metrics, err := s.manager.GetBotMetrics(ctx, req.ID)
		if err != nil {
			return errorResponse("get bot metrics %q: %v", req.ID, err)
		}
		return Response{Type: ResponseBotMetrics, Metrics: &metrics}

	case CommandGetSystemMetrics:
		metrics, err := s.manager.GetSystemMetrics(ctx)
		if err != nil {
			return errorResponse("get system metrics: %v", err)
		}
		return Response{Type: ResponseSystemMetrics, System: &metrics}

	case CommandStartAllBots:
		err := s.manager.StartAllBots(ctx)
		s.record(ctx, audit.EventAllBotsStarted, "", remote, "start all bots", err)
		if err != nil {
			return errorResponse("start all bots: %v", err)
		}
		return Response{Type: ResponseOK}

	case CommandStopAllBots:
		err := s.manager.StopAllBots(ctx)
		s.record(ctx, audit.EventAllBotsStopped, "", remote, "stop all bots", err)
		if err != nil {
			return errorResponse("stop all bots: %v", err)
		}
		return Response{Type: ResponseOK}

	case CommandGetResourceStatus:
		resources, err := s.manager.GetResourceStatus(ctx)
		if err != nil {
			return errorResponse("get resource status: %v", err)
		}
		return Response{Type: ResponseResourceStatus, Resources: &resources}

	case CommandCreateBackup:
		path, err := s.manager.CreateBackup(ctx)
		s.record(ctx, audit.EventBackupCreated, "", remote, "create backup", err)
		if err != nil {
			return errorResponse("create backup: %v", err)
		}
		return Response{Type: ResponseBackupCreated, Path: path}

	case CommandForceSave:
		err := s.manager.ForceSave(ctx)
		s.record(ctx, audit.EventForceSave, "", remote, "force save", err)
		if err != nil {
			return errorResponse("force save: %v", err)
		}
		return Response{Type: ResponseOK}

	case CommandCreateBot:
		id, err := s.manager.CreateBot(ctx, req.Type, req.Config)
		s.record(ctx, audit.EventBotCreated, id, remote, "create bot", err)
		if err != nil {
			return errorResponse("create bot: %v", err)
		}
		return Response{Type: ResponseBotCreated, BotID: id}

	default:
		return errorResponse("unrecognized command: %q", req.Command)
	}
}

// record writes one audit event if an audit logger is attached; errors
// are logged but never surfaced to the caller, since a failed audit
// write must not block the control response.
func (s *Server) record(ctx context.Context, eventType audit.EventType, botID, remote, action string, cmdErr error) {
	if s.audit == nil {
		return
	}
	severity := audit.SeverityInfo
	errMsg := ""
	if cmdErr != nil {
		severity = audit.SeverityError
		errMsg = cmdErr.Error()
	}
	if err := s.audit.Log(ctx, audit.Event{
		EventType:  eventType,
		Severity:   severity,
		BotID:      botID,
		RemoteAddr: remote,
		Action:     action,
		Success:    cmdErr == nil,
		ErrorMsg:   errMsg,
	}); err != nil {
		s.log.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to record audit event")
	}
}
