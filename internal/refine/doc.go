// Package refine implements the iterative bin refinement loop. Starting
// from a consensus bin set, it repeatedly assesses per-bin quality and
// reassigns outlier contigs out of contaminated bins until every bin is
// under the contamination ceiling or the iteration cap is hit. A final
// dereplication pass merges near-identical bins by average nucleotide
// identity.
package refine
