package gamify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samir777-eng/ebad-academy-sub001/adapters/curriculumfile"
	"github.com/samir777-eng/ebad-academy-sub001/adapters/memory"
	"github.com/samir777-eng/ebad-academy-sub001/analytics"
	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
	"github.com/samir777-eng/ebad-academy-sub001/realtime"
)

var errCurriculumUnsupported = errors.New("storage does not accept curriculum writes")

// Option configures the progression builder.
type Option func(*config)

type config struct {
	storage    engine.Storage
	mode       engine.DispatchMode
	busOpts    []engine.BusOption
	svcOpts    []engine.Option
	hub        *realtime.Hub
	hooks      []analytics.Hook
	notifiers  []engine.Notifier
	curriculum *curriculumfile.Curriculum
	logger     *slog.Logger
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode, opts ...engine.BusOption) Option {
	return func(c *config) {
		c.mode = m
		c.busOpts = append(c.busOpts, opts...)
	}
}

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithHooks feeds every engine event to the given analytics hooks.
func WithHooks(h ...analytics.Hook) Option { return func(c *config) { c.hooks = append(c.hooks, h...) } }

// WithNotifier forwards unlock and badge events to n.
func WithNotifier(n engine.Notifier) Option {
	return func(c *config) {
		if n != nil {
			c.notifiers = append(c.notifiers, n)
		}
	}
}

// WithCurriculum seeds the store before the service is returned. The store
// must implement engine.CurriculumWriter.
func WithCurriculum(cur curriculumfile.Curriculum) Option {
	return func(c *config) { c.curriculum = &cur }
}

// WithLogger sets the logger shared by the service and its subscribers.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
		c.svcOpts = append(c.svcOpts, engine.WithLogger(l))
	}
}

// WithServiceOptions passes options straight to engine.NewService.
func WithServiceOptions(opts ...engine.Option) Option {
	return func(c *config) { c.svcOpts = append(c.svcOpts, opts...) }
}

// Progression bundles a Service with the bus it publishes on.
type Progression struct {
	*engine.Service
	Bus *engine.EventBus
}

// Close drains the event bus.
func (p *Progression) Close() { p.Bus.Close() }

// New builds a configured progression Service. If not provided, defaults are used:
//   - storage: in-memory
//   - dispatch: async
func New(ctx context.Context, opts ...Option) (*Progression, error) {
	cfg := &config{mode: engine.DispatchAsync, logger: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = memory.New()
	}
	if cfg.curriculum != nil {
		w, ok := cfg.storage.(engine.CurriculumWriter)
		if !ok {
			return nil, errCurriculumUnsupported
		}
		if err := cfg.curriculum.Apply(ctx, w); err != nil {
			return nil, err
		}
	}

	bus := engine.NewEventBus(cfg.mode, cfg.busOpts...)
	svc := engine.NewService(cfg.storage, bus, cfg.svcOpts...)
	if cfg.hub != nil {
		bus.SubscribeAll(cfg.hub.Broadcast)
	}
	if len(cfg.hooks) > 0 {
		bridge := analytics.NewBridge(cfg.hooks...)
		bus.SubscribeAll(func(_ context.Context, e core.Event) { bridge.OnEvent(e) })
	}
	for _, n := range cfg.notifiers {
		svc.AttachNotifier(n)
	}
	return &Progression{Service: svc, Bus: bus}, nil
}
