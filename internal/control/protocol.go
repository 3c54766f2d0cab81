// Package control implements the external control surface (§6): a
// request/response protocol over a line-delimited encoded message stream,
// one JSON object per line. Grounded on cryptofunk's cmd/api/websocket.go
// Hub/Client shape, narrowed from a websocket upgrade to a plain TCP
// listener plus bufio.Scanner, since the spec calls for a newline-
// terminated stream rather than a websocket handshake (gorilla/websocket
// is still used one layer up, for the C9 dashboard feed).
package control

import (
	"encoding/json"
	"fmt"
)

// CommandName identifies the thirteen recognized control-surface commands.
type CommandName string

const (
	CommandPing              CommandName = "Ping"
	CommandListBots          CommandName = "ListBots"
	CommandGetBotStatus      CommandName = "GetBotStatus"
	CommandStartBot          CommandName = "StartBot"
	CommandStopBot           CommandName = "StopBot"
	CommandGetBotMetrics     CommandName = "GetBotMetrics"
	CommandGetSystemMetrics  CommandName = "GetSystemMetrics"
	CommandStartAllBots      CommandName = "StartAllBots"
	CommandStopAllBots       CommandName = "StopAllBots"
	CommandGetResourceStatus CommandName = "GetResourceStatus"
	CommandCreateBackup      CommandName = "CreateBackup"
	CommandForceSave         CommandName = "ForceSave"
	CommandCreateBot         CommandName = "CreateBot"
)

// Request is one line of the incoming stream: a command name plus its
// (command-specific) arguments.
type Request struct {
	Command CommandName     `json:"command"`
	ID      string          `json:"id,omitempty"` // bot id, where applicable
	Type    string          `json:"type,omitempty"` // bot type, for CreateBot
	Config  json.RawMessage `json:"config,omitempty"`
}

// ResponseType discriminates the Response envelope's payload.
type ResponseType string

const (
	ResponsePong            ResponseType = "Pong"
	ResponseBotList         ResponseType = "BotList"
	ResponseBotStatus       ResponseType = "BotStatus"
	ResponseOK              ResponseType = "OK"
	ResponseBotMetrics      ResponseType = "BotMetrics"
	ResponseSystemMetrics   ResponseType = "SystemMetrics"
	ResponseResourceStatus  ResponseType = "ResourceStatus"
	ResponseBackupCreated   ResponseType = "BackupCreated"
	ResponseBotCreated      ResponseType = "BotCreated"
	ResponseError           ResponseType = "Error"
)

// Response is one line of the outgoing stream.
type Response struct {
	Type    ResponseType `json:"type"`
	Message string       `json:"message,omitempty"` // ResponseError
	Path    string       `json:"path,omitempty"`    // ResponseBackupCreated

	Bots   []BotSummary    `json:"bots,omitempty"`
	Bot    *BotStatus      `json:"bot,omitempty"`
	Metrics *BotMetrics    `json:"metrics,omitempty"`
	System *SystemMetrics  `json:"system,omitempty"`
	Resources *ResourceStatus `json:"resources,omitempty"`
	BotID  string          `json:"bot_id,omitempty"`
}

// BotState is the lifecycle state of one managed bot.
type BotState string

const (
	BotStateRunning BotState = "running"
	BotStateStopped BotState = "stopped"
	BotStateFailed  BotState = "failed"
)

// BotSummary is ListBots' per-entry shape.
type BotSummary struct {
	ID    string   `json:"id"`
	Type  string   `json:"type"`
	State BotState `json:"state"`
}

// BotStatus is GetBotStatus' richer per-bot shape.
type BotStatus struct {
	BotSummary
	StartedAtMs int64  `json:"started_at_ms,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// BotMetrics is GetBotMetrics' payload: a snapshot of the bot's own
// decision/execution counters, independent of the Prometheus surface
// (this is the control-protocol's own view, for a CLI/UI with no
// /metrics scraper).
type BotMetrics struct {
	CandidatesPerTick float64 `json:"candidates_per_tick"`
	DecisionsAdmitted int64   `json:"decisions_admitted"`
	DecisionsRejected int64   `json:"decisions_rejected"`
	ExecutionsTotal   int64   `json:"executions_total"`
	GlobalSuccessRate float64 `json:"global_success_rate"`
	RealizedProfit    float64 `json:"realized_profit"`
}

// SystemMetrics is GetSystemMetrics' payload: process-wide, across all
// managed bots.
type SystemMetrics struct {
	BotsRunning int     `json:"bots_running"`
	BotsTotal   int     `json:"bots_total"`
	UptimeMs    int64   `json:"uptime_ms"`
	GlobalSuccessRate float64 `json:"global_success_rate"`
}

// ResourceStatus is GetResourceStatus' payload.
type ResourceStatus struct {
	ActiveConcurrency int     `json:"active_concurrency"`
	MaxConcurrency    int     `json:"max_concurrency"`
	QuoteCacheEntries int     `json:"quote_cache_entries"`
	ProviderDegraded  []string `json:"provider_degraded,omitempty"`
}

func errorResponse(format string, args ...any) Response {
	return Response{Type: ResponseError, Message: fmt.Sprintf(format, args...)}
}
