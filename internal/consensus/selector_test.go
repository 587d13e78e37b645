package consensus_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/corvid-bio/rookery/internal/bins"
	"github.com/corvid-bio/rookery/internal/consensus"
	"github.com/corvid-bio/rookery/internal/testutil"
)

func makeSet(t *testing.T, source string, assignments map[string][]string, quality map[string]bins.Quality) *bins.BinSet {
	t.Helper()
	set := bins.NewBinSet(source)
	for binName, contigs := range assignments {
		for _, id := range contigs {
			require.NoError(t, set.Assign(binName, bins.Contig{ID: id, Length: 1000}))
		}
	}
	for binName, q := range quality {
		set.SetQuality(binName, q)
	}
	return set
}

func TestSelectPrefersHigherScoringPartition(t *testing.T) {
	// Three contributors: A's partition scores higher, B soft-failed (empty),
	// C overlaps A on every bin and must be fully rejected.
	a := makeSet(t, "metabat2", map[string][]string{
		"bin1": {"c1", "c2", "c3"},
		"bin2": {"c4", "c5"},
	}, map[string]bins.Quality{
		"bin1": {Completeness: 95, Contamination: 2},
		"bin2": {Completeness: 90, Contamination: 3},
	})
	b := bins.NewBinSet("maxbin2")
	c := makeSet(t, "concoct", map[string][]string{
		"bin1": {"c1", "c2"},
		"bin2": {"c3", "c4", "c5"},
	}, map[string]bins.Quality{
		"bin1": {Completeness: 60, Contamination: 5},
		"bin2": {Completeness: 55, Contamination: 8},
	})

	ctx, _ := testutil.Context(t)
	out, err := consensus.Select(ctx, consensus.EnsembleInput{a, b, c}, consensus.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, 2, out.Len())
	assert.Equal(t, 5, out.ContigCount())

	owner1, _ := out.Owner("c1")
	owner2, _ := out.Owner("c2")
	owner3, _ := out.Owner("c3")
	owner4, _ := out.Owner("c4")
	owner5, _ := out.Owner("c5")
	assert.Equal(t, owner1, owner2)
	assert.Equal(t, owner1, owner3)
	assert.Equal(t, owner4, owner5)
	assert.NotEqual(t, owner1, owner4)
}

func TestSelectAllEmptyInputYieldsEmptySet(t *testing.T) {
	ctx, _ := testutil.Context(t)
	input := consensus.EnsembleInput{
		bins.NewBinSet("metabat2"),
		bins.NewBinSet("maxbin2"),
		nil,
	}
	out, err := consensus.Select(ctx, input, consensus.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestSelectRejectsBelowThreshold(t *testing.T) {
	set := makeSet(t, "vamb", map[string][]string{
		"good": {"c1", "c2"},
		"junk": {"c3"},
	}, map[string]bins.Quality{
		"good": {Completeness: 80, Contamination: 4},
		"junk": {Completeness: 10, Contamination: 60},
	})

	ctx, _ := testutil.Context(t)
	out, err := consensus.Select(ctx, consensus.EnsembleInput{set}, consensus.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, out.Len())
	_, binned := out.Owner("c3")
	assert.False(t, binned, "contig from rejected bin must stay unbinned")
}

func TestSelectTieBreaksByContigCountThenSourceOrder(t *testing.T) {
	q := bins.Quality{Completeness: 70, Contamination: 5}

	// Equal scores: the larger bin wins the shared contig.
	small := makeSet(t, "first", map[string][]string{"bin1": {"c1", "c2"}},
		map[string]bins.Quality{"bin1": q})
	large := makeSet(t, "second", map[string][]string{"bin1": {"c1", "c2", "c3"}},
		map[string]bins.Quality{"bin1": q})

	ctx, _ := testutil.Context(t)
	out, err := consensus.Select(ctx, consensus.EnsembleInput{small, large}, consensus.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 3, out.ContigCount())

	// Equal score and size: source order decides.
	left := makeSet(t, "first", map[string][]string{"bin1": {"c1", "c2"}},
		map[string]bins.Quality{"bin1": q})
	right := makeSet(t, "second", map[string][]string{"bin1": {"c1", "c2"}},
		map[string]bins.Quality{"bin1": q})

	out, err = consensus.Select(ctx, consensus.EnsembleInput{left, right}, consensus.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	got := out.Bin(out.BinNames()[0])
	gotQuality, ok := out.QualityOf(got.Name)
	assert.True(t, ok)
	assert.Equal(t, q, gotQuality)
	assert.Equal(t, 2, got.Size())
}

func TestSelectPartitionInvariant(t *testing.T) {
	ctx, _ := testutil.Context(t)
	rapid.Check(t, func(t *rapid.T) {
		nSources := rapid.IntRange(1, 4).Draw(t, "sources")
		input := make(consensus.EnsembleInput, 0, nSources)
		inputOwners := make([]map[string]string, nSources)

		for s := 0; s < nSources; s++ {
			set := bins.NewBinSet(fmt.Sprintf("tool%d", s))
			owners := make(map[string]string)
			nContigs := rapid.IntRange(0, 20).Draw(t, fmt.Sprintf("contigs%d", s))
			for i := 0; i < nContigs; i++ {
				id := fmt.Sprintf("c%d", rapid.IntRange(0, 19).Draw(t, fmt.Sprintf("id%d_%d", s, i)))
				if _, seen := owners[id]; seen {
					continue
				}
				binName := fmt.Sprintf("bin%d", rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("bin%d_%d", s, i)))
				if err := set.Assign(binName, bins.Contig{ID: id, Length: 500}); err != nil {
					t.Fatalf("assign: %v", err)
				}
				owners[id] = binName
			}
			for _, name := range set.BinNames() {
				set.SetQuality(name, bins.Quality{
					Completeness:  rapid.Float64Range(0, 100).Draw(t, fmt.Sprintf("comp%d_%s", s, name)),
					Contamination: rapid.Float64Range(0, 100).Draw(t, fmt.Sprintf("cont%d_%s", s, name)),
				})
			}
			input = append(input, set)
			inputOwners[s] = owners
		}

		out, err := consensus.Select(ctx, input, consensus.DefaultOptions())
		if err != nil {
			t.Fatalf("select: %v", err)
		}

		// Every output contig belongs to exactly one bin and came from some
		// input set.
		total := 0
		for _, name := range out.BinNames() {
			for _, contig := range out.Bin(name).Contigs() {
				owner, ok := out.Owner(contig.ID)
				if !ok || owner != name {
					t.Fatalf("contig %s: owner mismatch", contig.ID)
				}
				found := false
				for s := range inputOwners {
					if _, ok := inputOwners[s][contig.ID]; ok {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("contig %s not present in any input", contig.ID)
				}
				total++
			}
		}
		if total != out.ContigCount() {
			t.Fatalf("contig count mismatch: %d vs %d", total, out.ContigCount())
		}
	})
}
