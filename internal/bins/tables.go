package bins

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/corvid-bio/rookery/internal/fsutil"
)

// ReadContigBinTable reads a tab-separated (contig-id, bin-id) table, one row
// per binned contig. A missing or empty file yields an empty BinSet: that is
// the normal shape of a soft-failed tool's output, not an error.
func ReadContigBinTable(path, source string) (*BinSet, error) {
	set := NewBinSet(source)
	if !fsutil.Exists(path) {
		return set, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening contig-bin table '%s': %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("contig-bin table '%s' line %d: expected 2 tab-separated fields, got %d", path, lineNo, len(fields))
		}
		if err := set.Assign(fields[1], Contig{ID: fields[0]}); err != nil {
			return nil, fmt.Errorf("contig-bin table '%s' line %d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading contig-bin table '%s': %w", path, err)
	}
	return set, nil
}

// WriteContigBinTable writes the set as a tab-separated (contig-id, bin-id)
// table with deterministic row order.
func WriteContigBinTable(path string, set *BinSet) error {
	var sb strings.Builder
	for _, binName := range set.BinNames() {
		for _, contig := range set.Bin(binName).Contigs() {
			fmt.Fprintf(&sb, "%s\t%s\n", contig.ID, binName)
		}
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// ReadQualityTable reads a tab-separated quality table keyed by bin id with
// completeness and contamination percentage columns. Header column names are
// matched case-insensitively.
func ReadQualityTable(path string) (map[string]Quality, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening quality table '%s': %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading quality table '%s': %w", path, err)
		}
		return map[string]Quality{}, nil
	}

	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	compIdx, contIdx := -1, -1
	for i, col := range header {
		switch {
		case strings.EqualFold(strings.TrimSpace(col), "completeness"):
			compIdx = i
		case strings.EqualFold(strings.TrimSpace(col), "contamination"):
			contIdx = i
		}
	}
	if compIdx < 0 || contIdx < 0 {
		return nil, fmt.Errorf("quality table '%s': missing completeness/contamination columns in header", path)
	}

	out := make(map[string]Quality)
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= compIdx || len(fields) <= contIdx {
			return nil, fmt.Errorf("quality table '%s' line %d: too few fields", path, lineNo)
		}
		comp, err := strconv.ParseFloat(fields[compIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("quality table '%s' line %d: bad completeness: %w", path, lineNo, err)
		}
		cont, err := strconv.ParseFloat(fields[contIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("quality table '%s' line %d: bad contamination: %w", path, lineNo, err)
		}
		out[fields[0]] = Quality{Completeness: comp, Contamination: cont}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading quality table '%s': %w", path, err)
	}
	return out, nil
}

// CoverageRow holds one contig's length and per-sample depths.
type CoverageRow struct {
	Length int
	Depths []float64
}

// CoverageTable is a tab-separated table keyed by contig id with per-sample
// depth columns, as produced by the coverage-computation collaborator.
type CoverageTable struct {
	Samples []string
	Rows    map[string]CoverageRow
}

// MeanDepth returns the mean depth of the contig across samples, or zero when
// the contig is unknown.
func (t *CoverageTable) MeanDepth(contigID string) float64 {
	row, ok := t.Rows[contigID]
	if !ok || len(row.Depths) == 0 {
		return 0
	}
	total := 0.0
	for _, d := range row.Depths {
		total += d
	}
	return total / float64(len(row.Depths))
}

// ContigIDs returns all contig ids in the table, sorted.
func (t *CoverageTable) ContigIDs() []string {
	ids := make([]string, 0, len(t.Rows))
	for id := range t.Rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReadCoverageTable reads a coverage table. The first column is the contig
// id; a column named contigLen (case-insensitive) carries the contig length;
// every other numeric column is a per-sample depth.
func ReadCoverageTable(path string) (*CoverageTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening coverage table '%s': %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading coverage table '%s': %w", path, err)
		}
		return &CoverageTable{Rows: map[string]CoverageRow{}}, nil
	}

	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	lenIdx := -1
	var depthIdx []int
	var samples []string
	for i, col := range header[1:] {
		idx := i + 1
		if strings.EqualFold(strings.TrimSpace(col), "contiglen") {
			lenIdx = idx
			continue
		}
		depthIdx = append(depthIdx, idx)
		samples = append(samples, col)
	}

	table := &CoverageTable{Samples: samples, Rows: make(map[string]CoverageRow)}
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		row := CoverageRow{Depths: make([]float64, 0, len(depthIdx))}
		if lenIdx >= 0 {
			if len(fields) <= lenIdx {
				return nil, fmt.Errorf("coverage table '%s' line %d: too few fields", path, lineNo)
			}
			length, err := strconv.Atoi(fields[lenIdx])
			if err != nil {
				return nil, fmt.Errorf("coverage table '%s' line %d: bad contig length: %w", path, lineNo, err)
			}
			row.Length = length
		}
		for _, idx := range depthIdx {
			if len(fields) <= idx {
				return nil, fmt.Errorf("coverage table '%s' line %d: too few fields", path, lineNo)
			}
			depth, err := strconv.ParseFloat(fields[idx], 64)
			if err != nil {
				return nil, fmt.Errorf("coverage table '%s' line %d: bad depth value: %w", path, lineNo, err)
			}
			row.Depths = append(row.Depths, depth)
		}
		table.Rows[fields[0]] = row
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading coverage table '%s': %w", path, err)
	}
	return table, nil
}

// ReadFeatureTable reads a tab-separated numeric feature table keyed by
// contig id (e.g. k-mer composition frequencies). The header row names the
// feature columns; all values are float64.
func ReadFeatureTable(path string) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feature table '%s': %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading feature table '%s': %w", path, err)
		}
		return map[string][]float64{}, nil
	}

	out := make(map[string][]float64)
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		features := make([]float64, 0, len(fields)-1)
		for _, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("feature table '%s' line %d: bad value: %w", path, lineNo, err)
			}
			features = append(features, v)
		}
		out[fields[0]] = features
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feature table '%s': %w", path, err)
	}
	return out, nil
}
