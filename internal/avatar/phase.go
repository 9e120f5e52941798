package avatar

// Phase identifies one stage of an avatar's frame.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseTick
	PhaseWorldTick
	PhaseRender
	PhaseWorldRender
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseTick:
		return "tick"
	case PhaseWorldTick:
		return "world_tick"
	case PhaseRender:
		return "render"
	case PhaseWorldRender:
		return "world_render"
	default:
		return "unknown"
	}
}

// Instructions counts VM instructions spent in one phase. Pre covers the
// main part of the phase and Post the follow-up event.
type Instructions struct {
	Pre  int
	Post int
}

// Total returns Pre + Post.
func (i Instructions) Total() int {
	return i.Pre + i.Post
}

// Counters holds the most recent instruction counts of every phase.
type Counters struct {
	Init        Instructions
	Tick        Instructions
	WorldTick   Instructions
	Render      Instructions
	WorldRender Instructions
}

// Phase returns the counters of p.
func (c Counters) Phase(p Phase) Instructions {
	switch p {
	case PhaseInit:
		return c.Init
	case PhaseTick:
		return c.Tick
	case PhaseWorldTick:
		return c.WorldTick
	case PhaseRender:
		return c.Render
	case PhaseWorldRender:
		return c.WorldRender
	default:
		return Instructions{}
	}
}
