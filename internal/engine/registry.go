package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solarb/engine/internal/control"
)

// BotFactory builds a new Engine for botType (the discovery strategy
// family, e.g. "pairwise" or "triangular") from per-bot configuration
// overrides. Supplied by cmd/solarb-engine at startup, since only it
// knows how to turn a config.Config into a fully wired Deps.
type BotFactory func(botType string, config json.RawMessage) (*Engine, error)

type botEntry struct {
	id        string
	botType   string
	engine    *Engine
	cancel    context.CancelFunc
	state     control.BotState
	startedAt time.Time
	lastErr   string
	wg        sync.WaitGroup
}

// BotRegistry implements control.Manager over a set of independently
// startable/stoppable Engine instances. A "bot" is one named Engine with
// its own watched-pair set and risk/profit configuration; the registry
// lets the §6 control surface start, stop, and inspect each one without
// affecting the others running in the same process.
type BotRegistry struct {
	mu        sync.Mutex
	bots      map[string]*botEntry
	factory   BotFactory
	startedAt time.Time
}

// NewBotRegistry builds an empty registry; bots are added via CreateBot.
func NewBotRegistry(factory BotFactory) *BotRegistry {
	return &BotRegistry{bots: make(map[string]*botEntry), factory: factory, startedAt: time.Now()}
}

var _ control.Manager = (*BotRegistry)(nil)

func (r *BotRegistry) Ping(ctx context.Context) error { return nil }

func (r *BotRegistry) ListBots(ctx context.Context) ([]control.BotSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]control.BotSummary, 0, len(r.bots))
	for _, b := range r.bots {
		out = append(out, control.BotSummary{ID: b.id, Type: b.botType, State: b.state})
	}
	return out, nil
}

func (r *BotRegistry) GetBotStatus(ctx context.Context, id string) (control.BotStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bots[id]
	if !ok {
		return control.BotStatus{}, fmt.Errorf("unknown bot %q", id)
	}
	return control.BotStatus{
		BotSummary:  control.BotSummary{ID: b.id, Type: b.botType, State: b.state},
		StartedAtMs: b.startedAt.UnixMilli(),
		LastError:   b.lastErr,
	}, nil
}

func (r *BotRegistry) StartBot(ctx context.Context, id string, config json.RawMessage) error {
	r.mu.Lock()
	b, ok := r.bots[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown bot %q", id)
	}
	return r.start(b)
}

func (r *BotRegistry) start(b *botEntry) error {
	r.mu.Lock()
	if b.state == control.BotStateRunning {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.state = control.BotStateRunning
	b.startedAt = time.Now()
	b.lastErr = ""
	r.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.engine.Run(runCtx)

		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil && err != context.Canceled {
			b.state = control.BotStateFailed
			b.lastErr = err.Error()
		} else {
			b.state = control.BotStateStopped
		}
	}()
	return nil
}

func (r *BotRegistry) StopBot(ctx context.Context, id string) error {
	r.mu.Lock()
	b, ok := r.bots[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown bot %q", id)
	}
	return r.stop(b)
}

func (r *BotRegistry) stop(b *botEntry) error {
	r.mu.Lock()
	cancel := b.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()

	r.mu.Lock()
	b.state = control.BotStateStopped
	r.mu.Unlock()
	return nil
}

func (r *BotRegistry) GetBotMetrics(ctx context.Context, id string) (control.BotMetrics, error) {
	r.mu.Lock()
	b, ok := r.bots[id]
	r.mu.Unlock()
	if !ok {
		return control.BotMetrics{}, fmt.Errorf("unknown bot %q", id)
	}
	return b.engine.Metrics(), nil
}

func (r *BotRegistry) GetSystemMetrics(ctx context.Context) (control.SystemMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	running := 0
	var sumRate float64
	for _, b := range r.bots {
		if b.state == control.BotStateRunning {
			running++
		}
		sumRate += b.engine.Metrics().GlobalSuccessRate
	}
	avg := 0.0
	if len(r.bots) > 0 {
		avg = sumRate / float64(len(r.bots))
	}
	return control.SystemMetrics{
		BotsRunning:       running,
		BotsTotal:         len(r.bots),
		UptimeMs:          time.Since(r.startedAt).Milliseconds(),
		GlobalSuccessRate: avg,
	}, nil
}

func (r *BotRegistry) StartAllBots(ctx context.Context) error {
	r.mu.Lock()
	entries := make([]*botEntry, 0, len(r.bots))
	for _, b := range r.bots {
		entries = append(entries, b)
	}
	r.mu.Unlock()

	for _, b := range entries {
		if err := r.start(b); err != nil {
			return err
		}
	}
	return nil
}

func (r *BotRegistry) StopAllBots(ctx context.Context) error {
	r.mu.Lock()
	entries := make([]*botEntry, 0, len(r.bots))
	for _, b := range r.bots {
		entries = append(entries, b)
	}
	r.mu.Unlock()

	for _, b := range entries {
		if err := r.stop(b); err != nil {
			return err
		}
	}
	return nil
}

func (r *BotRegistry) GetResourceStatus(ctx context.Context) (control.ResourceStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active, max, cacheEntries := 0, 0, 0
	degradedSet := make(map[string]bool)
	for _, b := range r.bots {
		active += b.engine.ActiveExecutions()
		max += b.engine.cfg.MaxConcurrentExecutions
		cacheEntries += b.engine.deps.Quotes.CacheLen()
		for _, p := range b.engine.DegradedProviders() {
			degradedSet[p] = true
		}
	}
	degraded := make([]string, 0, len(degradedSet))
	for p := range degradedSet {
		degraded = append(degraded, p)
	}

	return control.ResourceStatus{
		ActiveConcurrency: active,
		MaxConcurrency:    max,
		QuoteCacheEntries: cacheEntries,
		ProviderDegraded:  degraded,
	}, nil
}

func (r *BotRegistry) CreateBackup(ctx context.Context) (string, error) {
	r.mu.Lock()
	entries := make([]*botEntry, 0, len(r.bots))
	for _, b := range r.bots {
		entries = append(entries, b)
	}
	r.mu.Unlock()

	if len(entries) == 0 {
		return "", fmt.Errorf("no bots to back up")
	}

	var lastErr error
	paths := make([]string, 0, len(entries))
	for _, b := range entries {
		path, err := b.engine.ArchiveModelSnapshot(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return "", lastErr
	}
	return fmt.Sprintf("%v", paths), nil
}

func (r *BotRegistry) ForceSave(ctx context.Context) error {
	r.mu.Lock()
	entries := make([]*botEntry, 0, len(r.bots))
	for _, b := range r.bots {
		entries = append(entries, b)
	}
	r.mu.Unlock()

	var lastErr error
	for _, b := range entries {
		if err := b.engine.SaveModelSnapshot(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (r *BotRegistry) CreateBot(ctx context.Context, botType string, config json.RawMessage) (string, error) {
	if r.factory == nil {
		return "", fmt.Errorf("no bot factory configured")
	}
	eng, err := r.factory(botType, config)
	if err != nil {
		return "", fmt.Errorf("create bot: %w", err)
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.bots[id] = &botEntry{id: id, botType: botType, engine: eng, state: control.BotStateStopped}
	r.mu.Unlock()
	return id, nil
}
