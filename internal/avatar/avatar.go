package avatar

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/dshills/avatarscript/internal/config"
	"github.com/dshills/avatarscript/internal/script"
	"github.com/dshills/avatarscript/internal/script/api"
	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// Option configures an Avatar.
type Option func(*Avatar)

// WithEntity attaches the entity scripts see as user and player.
func WithEntity(e api.Entity) Option {
	return func(a *Avatar) {
		a.entity = e
	}
}

// WithLimits sets the per-phase instruction limits.
func WithLimits(limits config.LimitsConfig) Option {
	return func(a *Avatar) {
		a.limits = limits
	}
}

// WithChannel sets where printed text and diagnostics go.
func WithChannel(c script.Channel) Option {
	return func(a *Avatar) {
		a.channel = c
	}
}

// WithLogger sets the avatar logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Avatar) {
		a.logger = logger
	}
}

// Avatar is the script owner of one entity.
type Avatar struct {
	id       uuid.UUID
	bundle   *Bundle
	registry *plua.Registry
	entity   api.Entity
	limits   config.LimitsConfig
	channel  script.Channel
	logger   *slog.Logger

	runtime     *script.Runtime
	scriptError bool
	counters    Counters
}

// New creates an avatar for owner id. It has no runtime until Load.
func New(id uuid.UUID, bundle *Bundle, registry *plua.Registry, opts ...Option) *Avatar {
	a := &Avatar{
		id:       id,
		bundle:   bundle,
		registry: registry,
		limits:   config.Default().Limits,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.channel == nil {
		a.channel = script.NewLogChannel(a.logger)
	}
	return a
}

// DisplayName implements script.Owner.
func (a *Avatar) DisplayName() string {
	if a.entity != nil {
		return a.entity.Name()
	}
	return a.bundle.Name()
}

// OwnerID implements script.Owner.
func (a *Avatar) OwnerID() uuid.UUID {
	return a.id
}

// MarkScriptError implements script.Owner.
func (a *Avatar) MarkScriptError() {
	a.scriptError = true
}

// DetachRuntime implements script.Owner.
func (a *Avatar) DetachRuntime(rt *script.Runtime) {
	if a.runtime == rt {
		a.runtime = nil
	}
}

// Bundle returns the bundle the avatar was built from.
func (a *Avatar) Bundle() *Bundle {
	return a.bundle
}

// Runtime returns the current runtime, nil when unloaded or discarded.
func (a *Avatar) Runtime() *script.Runtime {
	return a.runtime
}

// HasScriptError reports whether a script faulted since the last Load.
func (a *Avatar) HasScriptError() bool {
	return a.scriptError
}

// Counters returns the latest instruction counts.
func (a *Avatar) Counters() Counters {
	return a.counters
}

// OverlayLines returns the debug overlay lines, or nil without a runtime.
func (a *Avatar) OverlayLines() []string {
	if a.runtime == nil {
		return nil
	}
	return OverlayLines(a.counters)
}

// Load replaces the runtime with a fresh one built from the bundle and
// clears the error flag and counters. A bundle without scripts leaves the
// avatar without a runtime.
func (a *Avatar) Load() error {
	a.Unload()
	a.scriptError = false
	a.counters = Counters{}

	if a.bundle.Scripts.Len() == 0 {
		return nil
	}

	rt, err := script.New(a, a.bundle.Scripts, a.registry,
		script.WithChannel(a.channel),
		script.WithLogger(a.logger),
		script.WithSetup(api.Setup, a.bindEntity),
	)
	if err != nil {
		a.scriptError = true
		return err
	}
	a.runtime = rt
	return nil
}

func (a *Avatar) bindEntity(rt *script.Runtime) error {
	return rt.BindUser(api.WrapEntity(a.entity))
}

// Unload discards the runtime.
func (a *Avatar) Unload() {
	if a.runtime != nil {
		a.runtime.Close()
		a.runtime = nil
	}
}

// RunInit runs the manifest's autostart scripts, then ENTITY_INIT.
func (a *Avatar) RunInit() script.InitResult {
	rt := a.runtime
	if rt == nil {
		return script.InitNothingToRun
	}

	rt.SetInstructionLimit(a.limits.Init)
	result := rt.Init(a.bundle.Manifest.AutoScripts)
	a.counters.Init.Pre = rt.Instructions()
	if result != script.InitDone {
		return result
	}

	a.counters.Init.Post = a.callPhase(script.EventEntityInit, a.limits.Init)
	if a.runtime == nil {
		return script.InitFailed
	}
	return script.InitDone
}

// Tick runs WORLD_TICK, then TICK.
func (a *Avatar) Tick() {
	a.counters.WorldTick.Pre = a.callPhase(script.EventWorldTick, a.limits.WorldTick)
	a.counters.Tick.Pre = a.callPhase(script.EventTick, a.limits.Tick)
}

// Render runs RENDER, then POST_RENDER, passing delta to both.
func (a *Avatar) Render(delta float64) {
	a.counters.Render.Pre = a.callPhase(script.EventRender, a.limits.Render, delta)
	a.counters.Render.Post = a.callPhase(script.EventPostRender, a.limits.Render, delta)
}

// WorldRender runs WORLD_RENDER, then POST_WORLD_RENDER.
func (a *Avatar) WorldRender(delta float64) {
	a.counters.WorldRender.Pre = a.callPhase(script.EventWorldRender, a.limits.WorldRender, delta)
	a.counters.WorldRender.Post = a.callPhase(script.EventPostWorldRender, a.limits.WorldRender, delta)
}

// callPhase arms the governor with limit, fires event and returns the
// instructions spent. Without a runtime it returns 0.
func (a *Avatar) callPhase(event string, limit int, args ...any) int {
	rt := a.runtime
	if rt == nil {
		return 0
	}
	rt.SetInstructionLimit(limit)
	rt.CallEvent(event, args...)
	return rt.Instructions()
}
