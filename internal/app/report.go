package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/corvid-bio/rookery/internal/bins"
)

// writeQualityReport writes a tab-separated per-bin summary of the final
// set: quality metrics, contig count and total length.
func writeQualityReport(resolved string, set *bins.BinSet) error {
	var sb strings.Builder
	sb.WriteString("bin\tcompleteness\tcontamination\tcontigs\ttotal_length\n")
	for _, name := range set.BinNames() {
		bin := set.Bin(name)
		q, _ := set.QualityOf(name)
		fmt.Fprintf(&sb, "%s\t%.2f\t%.2f\t%d\t%d\n",
			name, q.Completeness, q.Contamination, bin.Size(), bin.TotalLength())
	}
	return os.WriteFile(resolved, []byte(sb.String()), 0o644)
}

// writeAbundanceReport writes the relative abundance of each final bin,
// estimated from the coverage table as the length-weighted mean depth of the
// bin's contigs, normalized across bins. Without a coverage table the report
// carries only the header.
func writeAbundanceReport(resolved string, set *bins.BinSet, coverage *bins.CoverageTable) error {
	var sb strings.Builder
	sb.WriteString("bin\tmean_depth\trelative_abundance\n")

	if coverage == nil || set.Empty() {
		return os.WriteFile(resolved, []byte(sb.String()), 0o644)
	}

	depths := make(map[string]float64, set.Len())
	total := 0.0
	for _, name := range set.BinNames() {
		bin := set.Bin(name)
		weighted, length := 0.0, 0.0
		for _, c := range bin.Contigs() {
			w := float64(c.Length)
			if row, ok := coverage.Rows[c.ID]; ok && w == 0 {
				w = float64(row.Length)
			}
			if w == 0 {
				w = 1
			}
			weighted += coverage.MeanDepth(c.ID) * w
			length += w
		}
		depth := 0.0
		if length > 0 {
			depth = weighted / length
		}
		depths[name] = depth
		total += depth
	}

	for _, name := range set.BinNames() {
		abundance := 0.0
		if total > 0 {
			abundance = depths[name] / total * 100
		}
		fmt.Fprintf(&sb, "%s\t%.4f\t%.2f\n", name, depths[name], abundance)
	}
	return os.WriteFile(resolved, []byte(sb.String()), 0o644)
}
