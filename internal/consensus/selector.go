package consensus

import (
	"context"
	"fmt"
	"sort"

	"github.com/corvid-bio/rookery/internal/bins"
	"github.com/corvid-bio/rookery/internal/ctxlog"
)

// EnsembleInput is the ordered collection of contributing bin sets. The
// order is significant: it is the final tie-breaker during selection. Empty
// sets are legal contributors and are simply skipped.
type EnsembleInput []*bins.BinSet

// Options tunes candidate scoring and admission.
type Options struct {
	// ScoreThreshold rejects candidates scoring strictly below it.
	ScoreThreshold float64
	// PenaltyWeight multiplies contamination in the candidate score.
	PenaltyWeight float64
}

// DefaultOptions returns the standard scoring parameters: penalty weight 1
// and a threshold low enough that only badly contaminated bins are cut.
func DefaultOptions() Options {
	return Options{ScoreThreshold: -42, PenaltyWeight: 1}
}

// candidate is one source bin under consideration.
type candidate struct {
	source  string
	bin     *bins.Bin
	quality bins.Quality
	score   float64
}

// Select merges the contributing bin sets into one consensus set. Each
// source bin is scored as completeness minus weighted contamination, using
// the quality its own set carries; unscored bins score zero. Candidates at
// or above the threshold are accepted greedily in descending score order,
// ties broken by larger contig count and then by source order. A candidate
// sharing any contig with an accepted bin is rejected, so contigs claimed
// by no accepted candidate stay unbinned. An all-empty input yields an
// empty consensus set.
func Select(ctx context.Context, input EnsembleInput, opts Options) (*bins.BinSet, error) {
	logger := ctxlog.FromContext(ctx)

	var candidates []candidate
	for _, set := range input {
		if set == nil || set.Empty() {
			continue
		}
		for _, name := range set.BinNames() {
			bin := set.Bin(name)
			q, scored := set.QualityOf(name)
			if !scored {
				logger.Debug("Bin has no quality record, scoring as zero.", "source", set.Source, "bin", name)
			}
			score := q.Completeness - opts.PenaltyWeight*q.Contamination
			if score < opts.ScoreThreshold {
				logger.Debug("Rejecting candidate below score threshold.",
					"source", set.Source, "bin", name, "score", score, "threshold", opts.ScoreThreshold)
				continue
			}
			candidates = append(candidates, candidate{source: set.Source, bin: bin, quality: q, score: score})
		}
	}

	// Stable sort keeps source order as the last tie-breaker.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].bin.Size() > candidates[j].bin.Size()
	})

	out := bins.NewBinSet("consensus")
	claimed := make(map[string]bool)
	for _, c := range candidates {
		if overlaps(c.bin, claimed) {
			logger.Debug("Rejecting candidate overlapping an accepted bin.",
				"source", c.source, "bin", c.bin.Name, "score", c.score)
			continue
		}
		name := uniqueName(out, c)
		for _, contig := range c.bin.Contigs() {
			if err := out.Assign(name, contig); err != nil {
				return nil, fmt.Errorf("consensus assignment: %w", err)
			}
			claimed[contig.ID] = true
		}
		out.SetQuality(name, c.quality)
		logger.Debug("Accepted candidate.", "source", c.source, "bin", c.bin.Name, "as", name, "score", c.score)
	}

	logger.Info("Consensus selection complete.",
		"candidates", len(candidates), "accepted", out.Len(), "contigs", out.ContigCount())
	return out, nil
}

// overlaps reports whether any of the bin's contigs is already claimed.
func overlaps(bin *bins.Bin, claimed map[string]bool) bool {
	for _, c := range bin.Contigs() {
		if claimed[c.ID] {
			return true
		}
	}
	return false
}

// uniqueName keeps the candidate's original bin name unless another source
// already took it, in which case the source is appended.
func uniqueName(out *bins.BinSet, c candidate) string {
	if out.Bin(c.bin.Name) == nil {
		return c.bin.Name
	}
	name := c.bin.Name + "." + c.source
	for i := 2; out.Bin(name) != nil; i++ {
		name = fmt.Sprintf("%s.%s.%d", c.bin.Name, c.source, i)
	}
	return name
}
