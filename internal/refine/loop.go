package refine

import (
	"context"
	"fmt"
	"math"

	"github.com/corvid-bio/rookery/internal/bins"
	"github.com/corvid-bio/rookery/internal/ctxlog"
)

// State is the terminal state of a refinement run.
type State int

const (
	// Pending means the loop has not finished.
	Pending State = iota
	// Converged means every bin satisfied the contamination ceiling.
	Converged
	// MaxIterationsReached means the iteration cap was hit first.
	MaxIterationsReached
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max-iterations-reached"
	default:
		return "pending"
	}
}

// QualityAssessor scores a bin set, returning per-bin quality keyed by bin
// name. Production wraps an external assessment tool; tests script it.
type QualityAssessor interface {
	Assess(ctx context.Context, set *bins.BinSet) (map[string]bins.Quality, error)
}

// ANICalculator computes average nucleotide identity between two bins in
// [0,1]. Used only during final dereplication.
type ANICalculator interface {
	ANI(ctx context.Context, a, b *bins.Bin) (float64, error)
}

// Options tunes the refinement loop.
type Options struct {
	// MaxContamination is the per-bin contamination ceiling (percent).
	MaxContamination float64
	// MaxIterations caps the number of reassignment passes.
	MaxIterations int
	// MinBinSize drops bins below this total length (base pairs) from the
	// final result. Zero disables the filter.
	MinBinSize int
	// ANI is the dereplication identity threshold in (0,1].
	ANI float64
	// FinalRefining enables the ANI merge pass after the loop terminates.
	FinalRefining bool
}

// Outcome is the result of one refinement run.
type Outcome struct {
	State      State
	Iterations int
	Bins       *bins.BinSet
}

// Loop drives iterative refinement over a fixed feature space.
type Loop struct {
	assessor QualityAssessor
	ani      ANICalculator
	features Features
	opts     Options
}

// NewLoop returns a Loop. The ANI calculator may be nil when FinalRefining
// is disabled.
func NewLoop(assessor QualityAssessor, ani ANICalculator, features Features, opts Options) *Loop {
	return &Loop{assessor: assessor, ani: ani, features: features, opts: opts}
}

// Run refines the initial set until convergence or the iteration cap.
// Convergence with zero passes is normal: a set already under the ceiling is
// returned untouched. When the cap is hit, the best set observed across all
// passes (lowest mean contamination) is returned, which is not necessarily
// the last one. The returned set always carries fresh quality records.
func (l *Loop) Run(ctx context.Context, initial *bins.BinSet) (Outcome, error) {
	logger := ctxlog.FromContext(ctx)

	current := initial
	best := initial
	bestScore := math.Inf(1)
	iteration := 0

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		quality, err := l.assessor.Assess(ctx, current)
		if err != nil {
			return Outcome{}, fmt.Errorf("quality assessment (iteration %d): %w", iteration, err)
		}
		for name, q := range quality {
			current.SetQuality(name, q)
		}

		if score := meanContamination(current); score < bestScore {
			best, bestScore = current, score
		}

		dirty := l.contaminatedBins(current)
		if len(dirty) == 0 {
			logger.Info("Refinement converged.", "iterations", iteration, "bins", current.Len())
			return l.finish(ctx, Outcome{State: Converged, Iterations: iteration, Bins: current})
		}
		if iteration >= l.opts.MaxIterations {
			logger.Warn("Refinement hit iteration cap, keeping best observed set.",
				"iterations", iteration, "remaining_contaminated", len(dirty))
			return l.finish(ctx, Outcome{State: MaxIterationsReached, Iterations: iteration, Bins: best})
		}

		logger.Info("Reassignment pass.", "iteration", iteration+1, "contaminated_bins", len(dirty))
		next, err := l.reassign(ctx, current, dirty)
		if err != nil {
			return Outcome{}, err
		}
		current = next
		iteration++
	}
}

// contaminatedBins returns bin names over the contamination ceiling.
func (l *Loop) contaminatedBins(set *bins.BinSet) []string {
	var out []string
	for _, name := range set.BinNames() {
		if q, ok := set.QualityOf(name); ok && q.Contamination > l.opts.MaxContamination {
			out = append(out, name)
		}
	}
	return out
}

// reassign rebuilds the set with outlier contigs evicted from the named
// contaminated bins. An outlier (centroid distance beyond mean plus two
// standard deviations) moves to the nearest other bin centroid when that
// centroid is closer than its own, otherwise it becomes unbinned.
func (l *Loop) reassign(ctx context.Context, set *bins.BinSet, dirty []string) (*bins.BinSet, error) {
	logger := ctxlog.FromContext(ctx)

	centroids := make(map[string][]float64, set.Len())
	for _, name := range set.BinNames() {
		centroids[name] = l.features.centroid(set.Bin(name).Contigs())
	}

	dirtySet := make(map[string]bool, len(dirty))
	for _, name := range dirty {
		dirtySet[name] = true
	}

	next := bins.NewBinSet(set.Source)
	moved, dropped := 0, 0
	for _, name := range set.BinNames() {
		bin := set.Bin(name)
		if !dirtySet[name] || centroids[name] == nil {
			for _, c := range bin.Contigs() {
				if err := next.Assign(name, c); err != nil {
					return nil, err
				}
			}
			continue
		}

		cutoff := outlierCutoff(l.features, bin, centroids[name])
		for _, c := range bin.Contigs() {
			own, ok := l.features.distance(c.ID, centroids[name])
			if !ok || own <= cutoff {
				if err := next.Assign(name, c); err != nil {
					return nil, err
				}
				continue
			}

			target, targetDist := nearestOther(l.features, c.ID, name, centroids)
			if target != "" && targetDist < own {
				moved++
				if err := next.Assign(target, c); err != nil {
					return nil, err
				}
				continue
			}
			dropped++
		}
	}

	logger.Debug("Reassignment finished.", "moved", moved, "unbinned", dropped)
	return next, nil
}

// finish applies the terminal passes: optional ANI dereplication, then the
// minimum bin size filter.
func (l *Loop) finish(ctx context.Context, out Outcome) (Outcome, error) {
	set := out.Bins
	if l.opts.FinalRefining && l.ani != nil {
		merged, changed, err := l.dereplicate(ctx, set)
		if err != nil {
			return Outcome{}, err
		}
		if changed {
			quality, err := l.assessor.Assess(ctx, merged)
			if err != nil {
				return Outcome{}, fmt.Errorf("quality assessment after dereplication: %w", err)
			}
			for name, q := range quality {
				merged.SetQuality(name, q)
			}
		}
		set = merged
	}

	if l.opts.MinBinSize > 0 {
		set = dropSmallBins(ctx, set, l.opts.MinBinSize)
	}
	out.Bins = set
	return out, nil
}

// outlierCutoff returns the mean plus two standard deviations of member
// distances to the bin centroid.
func outlierCutoff(features Features, bin *bins.Bin, centroid []float64) float64 {
	var dists []float64
	for _, c := range bin.Contigs() {
		if d, ok := features.distance(c.ID, centroid); ok {
			dists = append(dists, d)
		}
	}
	if len(dists) == 0 {
		return math.Inf(1)
	}
	mean := 0.0
	for _, d := range dists {
		mean += d
	}
	mean /= float64(len(dists))
	variance := 0.0
	for _, d := range dists {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(dists))
	return mean + 2*math.Sqrt(variance)
}

// nearestOther returns the closest centroid excluding the contig's own bin.
func nearestOther(features Features, contigID, own string, centroids map[string][]float64) (string, float64) {
	bestName := ""
	bestDist := math.Inf(1)
	for name, centroid := range centroids {
		if name == own || centroid == nil {
			continue
		}
		if d, ok := features.distance(contigID, centroid); ok && d < bestDist {
			bestName, bestDist = name, d
		}
	}
	return bestName, bestDist
}

// dropSmallBins filters out bins whose total length is under the minimum.
// Quality records of surviving bins are preserved.
func dropSmallBins(ctx context.Context, set *bins.BinSet, minSize int) *bins.BinSet {
	logger := ctxlog.FromContext(ctx)
	out := bins.NewBinSet(set.Source)
	for _, name := range set.BinNames() {
		bin := set.Bin(name)
		if bin.TotalLength() < minSize {
			logger.Debug("Dropping undersized bin.", "bin", name, "length", bin.TotalLength(), "min", minSize)
			continue
		}
		for _, c := range bin.Contigs() {
			// Cannot fail: the source set already satisfies the partition.
			_ = out.Assign(name, c)
		}
		if q, ok := set.QualityOf(name); ok {
			out.SetQuality(name, q)
		}
	}
	return out
}

// meanContamination returns the mean recorded contamination across bins,
// zero for an empty set.
func meanContamination(set *bins.BinSet) float64 {
	names := set.BinNames()
	if len(names) == 0 {
		return 0
	}
	sum := 0.0
	for _, name := range names {
		if q, ok := set.QualityOf(name); ok {
			sum += q.Contamination
		}
	}
	return sum / float64(len(names))
}
