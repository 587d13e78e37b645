// Package consensus merges independent per-tool bin sets into a single
// ensemble result. Every source bin becomes a scored candidate, and
// candidates are accepted greedily in descending score order, skipping any
// that overlap an already-accepted bin. The output therefore preserves the
// partition invariant: no contig appears in two bins.
package consensus
