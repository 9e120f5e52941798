package avatar

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/avatarscript/internal/config"
	"github.com/dshills/avatarscript/internal/script"
	"github.com/dshills/avatarscript/internal/script/api"
	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRegistry shares registry between the manager's avatars.
func WithRegistry(registry *plua.Registry) ManagerOption {
	return func(m *Manager) {
		m.registry = registry
	}
}

// WithManagerChannel sets the channel every avatar reports to.
func WithManagerChannel(c script.Channel) ManagerOption {
	return func(m *Manager) {
		m.channel = c
	}
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithQueueSize sets how many calls the control goroutine buffers.
func WithQueueSize(n int) ManagerOption {
	return func(m *Manager) {
		m.queueSize = n
	}
}

// Manager owns the loaded avatars and serializes all work on them onto one
// control goroutine. Call Run on that goroutine; every other method may be
// called from anywhere.
type Manager struct {
	limits    config.LimitsConfig
	registry  *plua.Registry
	channel   script.Channel
	logger    *slog.Logger
	queueSize int
	executor  *script.Executor

	// Confined to the control goroutine.
	avatars map[uuid.UUID]*Avatar
	byRoot  map[string]uuid.UUID

	watcherMu sync.Mutex
	watcher   *Watcher
}

// NewManager creates a manager applying limits to every avatar.
func NewManager(limits config.LimitsConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		limits:  limits,
		avatars: make(map[uuid.UUID]*Avatar),
		byRoot:  make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = plua.NewRegistry()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.channel == nil {
		m.channel = script.NewLogChannel(m.logger)
	}
	m.executor = script.NewExecutor(m.queueSize)
	return m
}

// Run processes manager calls until ctx is cancelled or Close is called.
func (m *Manager) Run(ctx context.Context) {
	m.executor.Run(ctx)
}

// Close stops the watcher and the control goroutine. Call UnloadAll first
// to close the runtimes.
func (m *Manager) Close() error {
	var err error
	if w := m.currentWatcher(); w != nil {
		err = w.Close()
	}
	m.executor.Close()
	return err
}

func (m *Manager) currentWatcher() *Watcher {
	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()
	return m.watcher
}

// Registry returns the shared type registry.
func (m *Manager) Registry() *plua.Registry {
	return m.registry
}

// Load replaces the avatar of id with one built from bundle and runs its
// init phase. A construction failure is returned; script faults go to the
// channel and leave the avatar loaded with its error flag set.
func (m *Manager) Load(ctx context.Context, id uuid.UUID, bundle *Bundle, entity api.Entity) error {
	return m.executor.Execute(ctx, func() error {
		return m.load(id, bundle, entity)
	})
}

// LoadDir reads the bundle at dir and loads it for id.
func (m *Manager) LoadDir(ctx context.Context, id uuid.UUID, dir string, entity api.Entity) error {
	bundle, err := LoadDir(dir)
	if err != nil {
		return err
	}
	return m.Load(ctx, id, bundle, entity)
}

func (m *Manager) load(id uuid.UUID, bundle *Bundle, entity api.Entity) error {
	if old := m.discard(id); old != nil && old.Dir != bundle.Dir {
		m.unwatch(old.Dir)
	}

	a := New(id, bundle, m.registry,
		WithEntity(entity),
		WithLimits(m.limits),
		WithChannel(m.channel),
		WithLogger(m.logger.With("owner", id.String())),
	)
	m.avatars[id] = a
	if bundle.Dir != "" {
		m.byRoot[bundle.Dir] = id
	}

	if err := a.Load(); err != nil {
		return fmt.Errorf("loading avatar %s: %w", a.DisplayName(), err)
	}
	result := a.RunInit()
	m.logger.Info("avatar loaded", "owner", id.String(), "name", a.DisplayName(),
		"scripts", bundle.Scripts.Len(), "init", result.String())
	return nil
}

// Reload rebuilds the avatar of id from its source. Avatars loaded from a
// directory re-read it; others reuse their bundle.
func (m *Manager) Reload(ctx context.Context, id uuid.UUID) error {
	return m.executor.Execute(ctx, func() error {
		return m.reload(id)
	})
}

func (m *Manager) reload(id uuid.UUID) error {
	a, ok := m.avatars[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAvatarNotFound, id)
	}

	bundle := a.Bundle()
	if bundle.Dir != "" {
		fresh, err := LoadDir(bundle.Dir)
		if err != nil {
			return err
		}
		bundle = fresh
	}
	return m.load(id, bundle, a.entity)
}

// Unload discards the avatar of id. Unknown ids are ignored.
func (m *Manager) Unload(ctx context.Context, id uuid.UUID) error {
	return m.executor.Execute(ctx, func() error {
		m.unload(id)
		return nil
	})
}

func (m *Manager) unload(id uuid.UUID) {
	if old := m.discard(id); old != nil {
		m.unwatch(old.Dir)
	}
}

// discard closes and forgets the avatar of id, returning its bundle.
func (m *Manager) discard(id uuid.UUID) *Bundle {
	a, ok := m.avatars[id]
	if !ok {
		return nil
	}
	a.Unload()
	delete(m.avatars, id)
	if dir := a.Bundle().Dir; dir != "" && m.byRoot[dir] == id {
		delete(m.byRoot, dir)
	}
	return a.Bundle()
}

// unwatch stops watching dir once no avatar is loaded from it.
func (m *Manager) unwatch(dir string) {
	if dir == "" {
		return
	}
	if _, used := m.byRoot[dir]; used {
		return
	}
	if w := m.currentWatcher(); w != nil {
		_ = w.Remove(dir)
	}
}

// UnloadAll discards every avatar.
func (m *Manager) UnloadAll(ctx context.Context) error {
	return m.executor.Execute(ctx, func() error {
		for _, a := range m.ordered() {
			m.unload(a.id)
		}
		return nil
	})
}

// Tick runs the tick phase of every avatar.
func (m *Manager) Tick(ctx context.Context) error {
	return m.executor.Execute(ctx, func() error {
		for _, a := range m.ordered() {
			a.Tick()
		}
		return nil
	})
}

// Render runs the world render phase wrapped around the entity render
// phase of every avatar.
func (m *Manager) Render(ctx context.Context, delta float64) error {
	return m.executor.Execute(ctx, func() error {
		avatars := m.ordered()
		for _, a := range avatars {
			a.counters.WorldRender.Pre = a.callPhase(script.EventWorldRender, a.limits.WorldRender, delta)
		}
		for _, a := range avatars {
			a.Render(delta)
		}
		for _, a := range avatars {
			a.counters.WorldRender.Post = a.callPhase(script.EventPostWorldRender, a.limits.WorldRender, delta)
		}
		return nil
	})
}

// Do runs fn with the avatar of id on the control goroutine. fn must not
// retain the avatar.
func (m *Manager) Do(ctx context.Context, id uuid.UUID, fn func(*Avatar) error) error {
	return m.executor.Execute(ctx, func() error {
		a, ok := m.avatars[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrAvatarNotFound, id)
		}
		return fn(a)
	})
}

// IDs returns the loaded owner ids in order.
func (m *Manager) IDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := m.executor.Execute(ctx, func() error {
		for _, a := range m.ordered() {
			ids = append(ids, a.id)
		}
		return nil
	})
	return ids, err
}

// Watch reloads the avatar of id whenever its directory changes. The
// watcher is started on first use.
func (m *Manager) Watch(ctx context.Context, id uuid.UUID, debounce time.Duration) error {
	var dir string
	err := m.executor.Execute(ctx, func() error {
		a, ok := m.avatars[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrAvatarNotFound, id)
		}
		if dir = a.Bundle().Dir; dir == "" {
			return fmt.Errorf("%w: %s", ErrNoSource, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()
	if m.watcher == nil {
		w, err := NewWatcher(debounce, m.onChange, m.logger)
		if err != nil {
			return err
		}
		m.watcher = w
	}
	return m.watcher.Add(dir)
}

// onChange runs on the watcher's timer goroutine and hands the reload to
// the control goroutine.
func (m *Manager) onChange(root string) {
	err := m.executor.Submit(func() error {
		id, ok := m.byRoot[root]
		if !ok {
			return nil
		}
		if err := m.reload(id); err != nil {
			m.logger.Error("avatar reload failed", "owner", id.String(), "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		m.logger.Warn("avatar reload dropped", "root", root, "error", err)
	}
}

// ordered returns the avatars sorted by owner id.
func (m *Manager) ordered() []*Avatar {
	avatars := make([]*Avatar, 0, len(m.avatars))
	for _, a := range m.avatars {
		avatars = append(avatars, a)
	}
	sort.Slice(avatars, func(i, j int) bool {
		return bytes.Compare(avatars[i].id[:], avatars[j].id[:]) < 0
	})
	return avatars
}
