// Package dag implements a generic, concurrency-safe directed acyclic graph.
// It stores nodes by string ID, tracks dependency and dependent edges in both
// directions, and validates acyclicity. Node iteration order is the insertion
// order, which callers rely on for deterministic scheduling.
package dag
