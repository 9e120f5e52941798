package avatar

import "fmt"

// OverlayLines formats c as the debug overlay shows it. Tick and render
// totals include their world counterparts; W is the world part, E the
// entity part, PE post-entity and PW post-world.
func OverlayLines(c Counters) []string {
	return []string{
		fmt.Sprintf("Init instructions: %d (W: %d E: %d)",
			c.Init.Total(), c.Init.Pre, c.Init.Post),
		fmt.Sprintf("Tick instructions: %d (W: %d E: %d)",
			c.Tick.Total()+c.WorldTick.Total(), c.WorldTick.Pre, c.Tick.Pre),
		fmt.Sprintf("Render instructions: %d (W: %d E: %d PE: %d PW: %d)",
			c.Render.Total()+c.WorldRender.Total(),
			c.WorldRender.Pre, c.Render.Pre, c.Render.Post, c.WorldRender.Post),
	}
}
