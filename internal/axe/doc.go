// Package axe runs the axe-core accessibility engine inside a browser page.
//
// The engine script is injected into the page on every analysis, then
// axe.run is invoked restricted to the ruleset tags of the requested
// conformance standard. Violations are returned as decoded from the engine;
// turning them into per-element issues is the normalizer's job.
package axe
