// Package engine assembles the render service: registry, journal, workspace
// manager, scheduler, and renderer behind one owned handle that can be
// constructed, started, and torn down as a unit. Nothing in the engine relies
// on ambient globals, so tests instantiate as many engines as they need.
package engine
