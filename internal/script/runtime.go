package script

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// DumpGlobal is the global bound to the registry dump. Types first bridged
// after the runtime is built, such as a new user handle, are added to it.
const DumpGlobal = "hostMetatables"

// Globals bound by BindUser.
const (
	UserGlobal   = "user"
	PlayerGlobal = "player"
)

// InitResult is the outcome of Init.
type InitResult int

const (
	// InitDone means every requested script ran.
	InitDone InitResult = iota
	// InitNothingToRun means the runtime has no scripts. It is not a failure.
	InitNothingToRun
	// InitFailed means a script faulted and the runtime was discarded.
	InitFailed
)

// String returns a string representation of the result.
func (r InitResult) String() string {
	switch r {
	case InitDone:
		return "done"
	case InitNothingToRun:
		return "nothing to run"
	case InitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SetupFunc registers capabilities on a new runtime before any user script
// runs. Returning an error aborts construction.
type SetupFunc func(rt *Runtime) error

// Option configures a Runtime.
type Option func(*options)

type options struct {
	channel  Channel
	logger   *slog.Logger
	setups   []SetupFunc
	builtins fs.FS
}

// WithChannel sets the channel receiving printed text and diagnostics.
func WithChannel(c Channel) Option {
	return func(o *options) {
		o.channel = c
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSetup appends capability setup callbacks. They run in order.
func WithSetup(fns ...SetupFunc) Option {
	return func(o *options) {
		o.setups = append(o.setups, fns...)
	}
}

// WithBuiltinScripts replaces the embedded sandbox bootstrap scripts.
func WithBuiltinScripts(scripts fs.FS) Option {
	return func(o *options) {
		o.builtins = scripts
	}
}

// Runtime is one isolated Lua environment bound to an Owner.
type Runtime struct {
	owner   Owner
	scripts *Scripts
	state   *plua.State
	events  *Events

	channel  Channel
	reporter *Reporter
	logger   *slog.Logger
}

// New builds a runtime for owner over scripts, bridging host values through
// registry. Construction either returns a fully usable runtime or an error;
// a failed bootstrap or capability setup never yields a partial runtime.
func New(owner Owner, scripts *Scripts, registry *plua.Registry, opts ...Option) (*Runtime, error) {
	if owner == nil {
		return nil, errors.New("script runtime requires an owner")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.channel == nil {
		o.channel = NewLogChannel(o.logger)
	}
	if scripts == nil {
		scripts = &Scripts{}
	}

	var stateOpts []plua.StateOption
	if o.builtins != nil {
		stateOpts = append(stateOpts, plua.WithBuiltinScripts(o.builtins))
	}

	state, err := plua.NewState(scripts, registry, stateOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating runtime for %s: %w", owner.DisplayName(), err)
	}

	logger := o.logger.With("entity", owner.DisplayName())
	rt := &Runtime{
		owner:    owner,
		scripts:  scripts,
		state:    state,
		events:   NewEvents(),
		channel:  o.channel,
		reporter: NewReporter(o.channel, logger),
		logger:   logger,
	}

	for _, setup := range o.setups {
		if err := rt.protect(func() error { return setup(rt) }); err != nil {
			state.Close()
			return nil, fmt.Errorf("capability setup for %s: %w", owner.DisplayName(), err)
		}
	}

	rt.installExtraLibraries()
	state.SetGlobal(DumpGlobal, state.Bridge().Dump())

	logger.Debug("runtime created", "scripts", scripts.Len(), "types", state.Bridge().Registry().Len())
	return rt, nil
}

// installExtraLibraries binds require, load, loadstring, type and the print
// functions.
func (rt *Runtime) installExtraLibraries() {
	rt.state.InstallLibraries()
	rt.installPrint()
}

// Run compiles and executes src. A fault is reported and discards the
// runtime; Run reports it as false and never propagates it.
func (rt *Runtime) Run(name, src string) bool {
	if rt.Closed() {
		return false
	}

	err := rt.protect(func() error {
		return rt.state.DoString(name, src)
	})
	if err != nil {
		rt.reporter.Report(rt, err)
		return false
	}
	return true
}

// Init runs the autostart scripts through require.
//
// A nil autoStart runs every script once, in insertion order. A non-nil list
// runs exactly the named scripts in the given order. The first fault aborts
// the remaining scripts and discards the runtime.
func (rt *Runtime) Init(autoStart []string) InitResult {
	if rt.Closed() {
		return InitFailed
	}
	if rt.scripts.Len() == 0 {
		return InitNothingToRun
	}

	names := autoStart
	if names == nil {
		names = rt.scripts.Names()
	}

	resolver := rt.state.Resolver()
	err := rt.protect(func() error {
		return rt.state.Protect(func(L *lua.LState) {
			for _, name := range names {
				resolver.Require(L, name)
			}
		})
	})
	if err != nil {
		rt.reporter.Report(rt, err)
		return InitFailed
	}

	rt.logger.Debug("runtime initialized", "scripts", len(names))
	return InitDone
}

// BindUser binds the user and player globals to obj. Binding again replaces
// the previous handle.
func (rt *Runtime) BindUser(obj plua.Object) error {
	if rt.Closed() {
		return ErrRuntimeClosed
	}

	v, err := rt.state.Bridge().HostToGuest(obj)
	if err != nil {
		return err
	}
	rt.state.SetGlobal(UserGlobal, v)
	rt.state.SetGlobal(PlayerGlobal, v)
	return nil
}

// SetGlobal converts value and binds it as a global. Host objects are bridged.
func (rt *Runtime) SetGlobal(name string, value any) error {
	if rt.Closed() {
		return ErrRuntimeClosed
	}

	if obj, ok := value.(plua.Object); ok {
		v, err := rt.state.Bridge().HostToGuest(obj)
		if err != nil {
			return err
		}
		rt.state.SetGlobal(name, v)
		return nil
	}

	rt.state.SetGlobal(name, rt.state.Bridge().ToLuaValue(value))
	return nil
}

// CallEvent calls every function registered for the named event with args.
// Host objects among args are bridged. It returns false if the runtime is
// closed or a function faulted, in which case the runtime is discarded.
func (rt *Runtime) CallEvent(name string, args ...any) bool {
	if rt.Closed() {
		return false
	}

	event, ok := rt.events.Get(name)
	if !ok || event.Count() == 0 {
		return true
	}

	bridge := rt.state.Bridge()
	largs := make([]lua.LValue, len(args))
	for i, arg := range args {
		lv, err := bridge.GuestValue(arg)
		if err != nil {
			rt.reporter.Report(rt, fmt.Errorf("event %s argument %d: %w", event.Name(), i+1, err))
			return false
		}
		largs[i] = lv
	}

	fns := event.Functions()
	err := rt.protect(func() error {
		return rt.state.Protect(func(L *lua.LState) {
			for _, fn := range fns {
				L.Push(fn)
				for _, arg := range largs {
					L.Push(arg)
				}
				L.Call(len(largs), 0)
			}
		})
	})
	if err != nil {
		rt.reporter.Report(rt, err)
		return false
	}
	return true
}

// SetInstructionLimit zeroes the instruction counter and bounds the next
// invocations to limit instructions.
func (rt *Runtime) SetInstructionLimit(limit int) {
	rt.state.SetInstructionLimit(limit)
}

// Instructions returns the instructions executed since the limit was last set.
// It stays readable after the runtime is discarded.
func (rt *Runtime) Instructions() int {
	return rt.state.Instructions()
}

// Report hands err to the runtime's reporter, discarding the runtime.
func (rt *Runtime) Report(err error) *plua.Fault {
	return rt.reporter.Report(rt, err)
}

// Owner returns the entity the runtime is bound to.
func (rt *Runtime) Owner() Owner {
	return rt.owner
}

// Scripts returns the runtime's scripts.
func (rt *Runtime) Scripts() *Scripts {
	return rt.scripts
}

// State returns the underlying Lua state.
func (rt *Runtime) State() *plua.State {
	return rt.state
}

// Bridge returns the state's value bridge.
func (rt *Runtime) Bridge() *plua.Bridge {
	return rt.state.Bridge()
}

// Events returns the runtime's event hooks.
func (rt *Runtime) Events() *Events {
	return rt.events
}

// Channel returns the output channel.
func (rt *Runtime) Channel() Channel {
	return rt.channel
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Close discards the runtime. Closing twice is a no-op.
func (rt *Runtime) Close() {
	rt.state.Close()
}

// Closed reports whether the runtime was discarded.
func (rt *Runtime) Closed() bool {
	return rt.state.IsClosed()
}

// protect runs fn and converts a Go panic into a Fault.
func (rt *Runtime) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = plua.Normalize(r)
		}
	}()
	return fn()
}
