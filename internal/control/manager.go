package control

import (
	"context"
	"encoding/json"
)

// Manager is the subset of internal/engine's bot-registry behavior the
// control surface depends on. Defined here, at the consumer, so this
// package has no import-time dependency on internal/engine; the engine's
// BotRegistry satisfies this interface.
type Manager interface {
	Ping(ctx context.Context) error
	ListBots(ctx context.Context) ([]BotSummary, error)
	GetBotStatus(ctx context.Context, id string) (BotStatus, error)
	StartBot(ctx context.Context, id string, config json.RawMessage) error
	StopBot(ctx context.Context, id string) error
	GetBotMetrics(ctx context.Context, id string) (BotMetrics, error)
	GetSystemMetrics(ctx context.Context) (SystemMetrics, error)
	StartAllBots(ctx context.Context) error
	StopAllBots(ctx context.Context) error
	GetResourceStatus(ctx context.Context) (ResourceStatus, error)
	CreateBackup(ctx context.Context) (string, error)
	ForceSave(ctx context.Context) error
	CreateBot(ctx context.Context, botType string, config json.RawMessage) (string, error)
}
