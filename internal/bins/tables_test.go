package bins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadContigBinTable(t *testing.T) {
	t.Run("parses rows and comments", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "c2b.tsv",
			"# produced by convert_binnings\nc1\tbin1\nc2\tbin1\nc3\tbin2\n")

		set, err := ReadContigBinTable(path, "metabat2")
		require.NoError(t, err)
		assert.Equal(t, "metabat2", set.Source)
		assert.Equal(t, []string{"bin1", "bin2"}, set.BinNames())
		assert.Equal(t, 2, set.Bin("bin1").Size())
	})

	t.Run("missing file is an empty set", func(t *testing.T) {
		set, err := ReadContigBinTable(filepath.Join(t.TempDir(), "absent.tsv"), "vamb")
		require.NoError(t, err)
		assert.True(t, set.Empty())
	})

	t.Run("empty file is an empty set", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "c2b.tsv", "")
		set, err := ReadContigBinTable(path, "vamb")
		require.NoError(t, err)
		assert.True(t, set.Empty())
	})

	t.Run("malformed row is rejected", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "c2b.tsv", "c1 bin1\n")
		_, err := ReadContigBinTable(path, "metabat2")
		assert.ErrorContains(t, err, "expected 2 tab-separated fields")
	})

	t.Run("duplicate contig across bins is rejected", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "c2b.tsv", "c1\tbin1\nc1\tbin2\n")
		_, err := ReadContigBinTable(path, "metabat2")
		assert.ErrorContains(t, err, "already assigned")
	})
}

func TestWriteContigBinTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	set := NewBinSet("consensus")
	require.NoError(t, set.Assign("bin2", Contig{ID: "c3"}))
	require.NoError(t, set.Assign("bin1", Contig{ID: "c2"}))
	require.NoError(t, set.Assign("bin1", Contig{ID: "c1"}))

	path := filepath.Join(dir, "out.tsv")
	require.NoError(t, WriteContigBinTable(path, set))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	// Deterministic order: bins sorted, contigs sorted within bins.
	assert.Equal(t, "c1\tbin1\nc2\tbin1\nc3\tbin2\n", string(content))
}

func TestReadQualityTable(t *testing.T) {
	t.Run("parses header-addressed columns", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "quality.tsv",
			"Bin Id\tCompleteness\tContamination\tStrain heterogeneity\n"+
				"metabat2.bin1\t96.3\t1.2\t0.0\n"+
				"maxbin2.bin1\t54.0\t22.8\t8.1\n")

		quality, err := ReadQualityTable(path)
		require.NoError(t, err)

		want := map[string]Quality{
			"metabat2.bin1": {Completeness: 96.3, Contamination: 1.2},
			"maxbin2.bin1":  {Completeness: 54.0, Contamination: 22.8},
		}
		assert.Empty(t, cmp.Diff(want, quality))
	})

	t.Run("missing columns are rejected", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "quality.tsv", "Bin Id\tScore\nbin1\t4\n")
		_, err := ReadQualityTable(path)
		assert.ErrorContains(t, err, "missing completeness/contamination")
	})
}

func TestReadCoverageTable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "coverage.tsv",
		"contigName\tcontigLen\tsample1.bam\tsample2.bam\n"+
			"c1\t4200\t10.5\t2.0\n"+
			"c2\t1800\t0.0\t6.0\n")

	table, err := ReadCoverageTable(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"sample1.bam", "sample2.bam"}, table.Samples)
	assert.Equal(t, []string{"c1", "c2"}, table.ContigIDs())
	assert.Equal(t, 4200, table.Rows["c1"].Length)
	assert.InDelta(t, 6.25, table.MeanDepth("c1"), 1e-9)
	assert.InDelta(t, 3.0, table.MeanDepth("c2"), 1e-9)
	assert.Zero(t, table.MeanDepth("unknown"))
}

func TestReadFeatureTable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "kmers.tsv",
		"contig\tAAAA\tAAAT\tAAAG\n"+
			"c1\t0.25\t0.50\t0.25\n"+
			"c2\t0.10\t0.10\t0.80\n")

	features, err := ReadFeatureTable(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.25}, features["c1"])
	assert.Equal(t, []float64{0.1, 0.1, 0.8}, features["c2"])
}
