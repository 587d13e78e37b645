// Package bins defines the core domain model of a binning result: contigs,
// bins, and bin sets, together with the tab-separated boundary formats the
// pipeline exchanges with its external collaborators (contig-to-bin tables,
// quality tables, coverage tables).
//
// A BinSet is a partition: within one set a contig belongs to at most one
// bin. The Assign method enforces this, so every BinSet built through the
// public API upholds the invariant by construction.
package bins
