package refine

import (
	"math"

	"github.com/corvid-bio/rookery/internal/bins"
)

// Features maps contig IDs to numeric feature vectors used for centroid
// distance during reassignment. Contigs without a vector are never moved
// between bins; when evicted they become unbinned.
type Features map[string][]float64

// CombineFeatures concatenates per-contig composition vectors with coverage
// depths into one feature space. Contigs present in only one of the two
// tables keep the part they have.
func CombineFeatures(composition map[string][]float64, coverage *bins.CoverageTable) Features {
	out := make(Features, len(composition))
	for id, vec := range composition {
		combined := make([]float64, 0, len(vec))
		combined = append(combined, vec...)
		if coverage != nil {
			if row, ok := coverage.Rows[id]; ok {
				combined = append(combined, row.Depths...)
			}
		}
		out[id] = combined
	}
	if coverage != nil {
		for id, row := range coverage.Rows {
			if _, ok := out[id]; ok {
				continue
			}
			depths := make([]float64, len(row.Depths))
			copy(depths, row.Depths)
			out[id] = depths
		}
	}
	return out
}

// centroid returns the mean feature vector of the given contigs, or nil
// when none of them carries features. Vectors of differing lengths are
// truncated to the shortest.
func (f Features) centroid(contigs []bins.Contig) []float64 {
	var sum []float64
	n := 0
	for _, c := range contigs {
		vec, ok := f[c.ID]
		if !ok || len(vec) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(vec))
		}
		if len(vec) < len(sum) {
			sum = sum[:len(vec)]
		}
		for i := range sum {
			sum[i] += vec[i]
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}

// distance returns the Euclidean distance between a contig's features and a
// centroid, or false when the contig has no features.
func (f Features) distance(contigID string, centroid []float64) (float64, bool) {
	vec, ok := f[contigID]
	if !ok || len(vec) == 0 || centroid == nil {
		return 0, false
	}
	n := len(vec)
	if len(centroid) < n {
		n = len(centroid)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := vec[i] - centroid[i]
		sum += d * d
	}
	return math.Sqrt(sum), true
}
