// Package avatar drives script runtimes on behalf of entities.
//
// An Avatar owns at most one script.Runtime. It loads the runtime from a
// Bundle, runs the autostart scripts, and then drives the per-frame phases:
//
//	RunInit      autostart scripts, then ENTITY_INIT
//	Tick         WORLD_TICK, then TICK
//	Render       RENDER, then POST_RENDER
//	WorldRender  WORLD_RENDER, then POST_WORLD_RENDER
//
// Every phase arms the instruction governor with its configured limit and
// records the instructions spent before and after the entity part of the
// phase. A fault in any phase discards the runtime; the avatar keeps its
// error flag until it is reloaded.
//
// Avatars are not safe for concurrent use. Manager confines every avatar to
// one control goroutine through a script.Executor.
package avatar
