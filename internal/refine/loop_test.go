package refine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-bio/rookery/internal/bins"
	"github.com/corvid-bio/rookery/internal/refine"
	"github.com/corvid-bio/rookery/internal/testutil"
)

// scriptedAssessor returns quality from a per-call script.
type scriptedAssessor struct {
	calls int
	fn    func(call int, set *bins.BinSet) map[string]bins.Quality
}

func (a *scriptedAssessor) Assess(_ context.Context, set *bins.BinSet) (map[string]bins.Quality, error) {
	a.calls++
	return a.fn(a.calls, set), nil
}

// uniform returns the same quality for every bin in the set.
func uniform(q bins.Quality) func(int, *bins.BinSet) map[string]bins.Quality {
	return func(_ int, set *bins.BinSet) map[string]bins.Quality {
		out := make(map[string]bins.Quality)
		for _, name := range set.BinNames() {
			out[name] = q
		}
		return out
	}
}

// fixedANI reports the same identity for every bin pair.
type fixedANI struct{ value float64 }

func (f fixedANI) ANI(context.Context, *bins.Bin, *bins.Bin) (float64, error) {
	return f.value, nil
}

func assign(t *testing.T, set *bins.BinSet, binName, contigID string, length int) {
	t.Helper()
	require.NoError(t, set.Assign(binName, bins.Contig{ID: contigID, Length: length}))
}

func TestRunConvergesWithZeroPasses(t *testing.T) {
	set := bins.NewBinSet("consensus")
	assign(t, set, "bin1", "c1", 1000)
	assign(t, set, "bin1", "c2", 1000)
	assign(t, set, "bin2", "c3", 1000)

	assessor := &scriptedAssessor{fn: uniform(bins.Quality{Completeness: 92, Contamination: 3})}
	loop := refine.NewLoop(assessor, nil, refine.Features{}, refine.Options{
		MaxContamination: 10,
		MaxIterations:    5,
	})

	ctx, _ := testutil.Context(t)
	out, err := loop.Run(ctx, set)
	require.NoError(t, err)

	assert.Equal(t, refine.Converged, out.State)
	assert.Equal(t, 0, out.Iterations)
	assert.Equal(t, 1, assessor.calls)
	assert.Equal(t, 3, out.Bins.ContigCount())
	q, ok := out.Bins.QualityOf("bin1")
	require.True(t, ok)
	assert.InDelta(t, 3.0, q.Contamination, 1e-9)
}

func TestRunEvictsOutlierIntoNearestBin(t *testing.T) {
	set := bins.NewBinSet("consensus")
	features := refine.Features{}
	for i := 1; i <= 9; i++ {
		id := fmt.Sprintf("d%d", i)
		assign(t, set, "dirty", id, 1000)
		features[id] = []float64{0}
	}
	assign(t, set, "dirty", "dx", 1000)
	features["dx"] = []float64{100}
	assign(t, set, "clean", "c1", 1000)
	assign(t, set, "clean", "c2", 1000)
	features["c1"] = []float64{100}
	features["c2"] = []float64{100}

	// Contaminated on the first pass; pure once the outlier is gone.
	assessor := &scriptedAssessor{fn: func(call int, set *bins.BinSet) map[string]bins.Quality {
		out := make(map[string]bins.Quality)
		for _, name := range set.BinNames() {
			if call == 1 && name == "dirty" {
				out[name] = bins.Quality{Completeness: 70, Contamination: 30}
				continue
			}
			out[name] = bins.Quality{Completeness: 90, Contamination: 1}
		}
		return out
	}}

	loop := refine.NewLoop(assessor, nil, features, refine.Options{
		MaxContamination: 10,
		MaxIterations:    5,
	})

	ctx, _ := testutil.Context(t)
	out, err := loop.Run(ctx, set)
	require.NoError(t, err)

	assert.Equal(t, refine.Converged, out.State)
	assert.Equal(t, 1, out.Iterations)
	owner, ok := out.Bins.Owner("dx")
	require.True(t, ok, "outlier should be reassigned, not unbinned")
	assert.Equal(t, "clean", owner)
	assert.Equal(t, 9, out.Bins.Bin("dirty").Size())
}

func TestRunIterationCapReturnsBestObservedSet(t *testing.T) {
	set := bins.NewBinSet("consensus")
	features := refine.Features{}
	for i := 1; i <= 9; i++ {
		id := fmt.Sprintf("m%d", i)
		assign(t, set, "only", id, 1000)
		features[id] = []float64{0}
	}
	assign(t, set, "only", "mx", 1000)
	features["mx"] = []float64{100}

	// Quality degrades after the first pass, so the initial set is the best
	// one observed when the cap is hit.
	assessor := &scriptedAssessor{fn: func(call int, set *bins.BinSet) map[string]bins.Quality {
		contamination := map[int]float64{1: 20, 2: 50}[call]
		if contamination == 0 {
			contamination = 60
		}
		out := make(map[string]bins.Quality)
		for _, name := range set.BinNames() {
			out[name] = bins.Quality{Completeness: 50, Contamination: contamination}
		}
		return out
	}}

	loop := refine.NewLoop(assessor, nil, features, refine.Options{
		MaxContamination: 10,
		MaxIterations:    2,
	})

	ctx, _ := testutil.Context(t)
	out, err := loop.Run(ctx, set)
	require.NoError(t, err)

	assert.Equal(t, refine.MaxIterationsReached, out.State)
	assert.Equal(t, 2, out.Iterations)
	// The first pass evicted the outlier; the best set is the untouched one.
	assert.Equal(t, 10, out.Bins.ContigCount())
}

func TestRunFinalRefiningMergesNearIdenticalBins(t *testing.T) {
	set := bins.NewBinSet("consensus")
	assign(t, set, "bin1", "c1", 1000)
	assign(t, set, "bin1", "c2", 1000)
	assign(t, set, "bin2", "c3", 1000)

	assessor := &scriptedAssessor{fn: uniform(bins.Quality{Completeness: 88, Contamination: 2})}
	loop := refine.NewLoop(assessor, fixedANI{value: 0.99}, refine.Features{}, refine.Options{
		MaxContamination: 10,
		MaxIterations:    5,
		ANI:              0.97,
		FinalRefining:    true,
	})

	ctx, _ := testutil.Context(t)
	out, err := loop.Run(ctx, set)
	require.NoError(t, err)

	assert.Equal(t, refine.Converged, out.State)
	require.Equal(t, 1, out.Bins.Len())
	assert.Equal(t, 3, out.Bins.ContigCount())
	// Merged set is re-assessed.
	assert.Equal(t, 2, assessor.calls)
	_, ok := out.Bins.QualityOf(out.Bins.BinNames()[0])
	assert.True(t, ok)
}

func TestRunFinalRefiningKeepsDistinctBins(t *testing.T) {
	set := bins.NewBinSet("consensus")
	assign(t, set, "bin1", "c1", 1000)
	assign(t, set, "bin2", "c2", 1000)

	assessor := &scriptedAssessor{fn: uniform(bins.Quality{Completeness: 88, Contamination: 2})}
	loop := refine.NewLoop(assessor, fixedANI{value: 0.5}, refine.Features{}, refine.Options{
		MaxContamination: 10,
		MaxIterations:    5,
		ANI:              0.97,
		FinalRefining:    true,
	})

	ctx, _ := testutil.Context(t)
	out, err := loop.Run(ctx, set)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Bins.Len())
	assert.Equal(t, 1, assessor.calls)
}

func TestRunDropsUndersizedBins(t *testing.T) {
	set := bins.NewBinSet("consensus")
	assign(t, set, "big", "c1", 300000)
	assign(t, set, "tiny", "c2", 1000)

	assessor := &scriptedAssessor{fn: uniform(bins.Quality{Completeness: 80, Contamination: 1})}
	loop := refine.NewLoop(assessor, nil, refine.Features{}, refine.Options{
		MaxContamination: 10,
		MaxIterations:    5,
		MinBinSize:       200000,
	})

	ctx, _ := testutil.Context(t)
	out, err := loop.Run(ctx, set)
	require.NoError(t, err)

	assert.Equal(t, []string{"big"}, out.Bins.BinNames())
	_, binned := out.Bins.Owner("c2")
	assert.False(t, binned)
}
