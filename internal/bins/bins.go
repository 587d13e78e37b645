package bins

import (
	"fmt"
	"sort"
)

// Contig is the atomic unit of a binning result: an assembled sequence
// identified by an opaque ID. Length is in base pairs and may be zero when
// the source table does not carry it.
type Contig struct {
	ID     string
	Length int
}

// Quality holds the two standard bin quality metrics, both percentages.
type Quality struct {
	Completeness  float64
	Contamination float64
}

// Bin is a named set of contigs, a putative genome.
type Bin struct {
	Name    string
	contigs map[string]Contig
}

// Contigs returns the bin's contigs sorted by ID.
func (b *Bin) Contigs() []Contig {
	out := make([]Contig, 0, len(b.contigs))
	for _, c := range b.contigs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Size returns the number of contigs in the bin.
func (b *Bin) Size() int { return len(b.contigs) }

// TotalLength returns the summed contig length of the bin in base pairs.
func (b *Bin) TotalLength() int {
	total := 0
	for _, c := range b.contigs {
		total += c.Length
	}
	return total
}

// Contains reports whether the bin holds the contig with the given ID.
func (b *Bin) Contains(contigID string) bool {
	_, ok := b.contigs[contigID]
	return ok
}

// BinSet is the output of one binner, or of the consensus/refinement stages:
// a mapping from bin name to Bin plus optional per-bin quality metrics.
// An empty BinSet is a legal value denoting a soft-failed or no-result tool.
type BinSet struct {
	// Source identifies the producing tool, e.g. "metabat2".
	Source string

	bins    map[string]*Bin
	byContg map[string]string // contig ID -> owning bin name
	quality map[string]Quality
}

// NewBinSet returns an empty BinSet attributed to the given source.
func NewBinSet(source string) *BinSet {
	return &BinSet{
		Source:  source,
		bins:    make(map[string]*Bin),
		byContg: make(map[string]string),
		quality: make(map[string]Quality),
	}
}

// Assign places a contig into the named bin, creating the bin if needed.
// Assigning the same contig to the same bin is a no-op; assigning it to a
// different bin violates the partition invariant and returns an error.
func (s *BinSet) Assign(binName string, contig Contig) error {
	if owner, ok := s.byContg[contig.ID]; ok {
		if owner == binName {
			return nil
		}
		return fmt.Errorf("contig '%s' already assigned to bin '%s', cannot assign to '%s'", contig.ID, owner, binName)
	}

	bin, ok := s.bins[binName]
	if !ok {
		bin = &Bin{Name: binName, contigs: make(map[string]Contig)}
		s.bins[binName] = bin
	}
	bin.contigs[contig.ID] = contig
	s.byContg[contig.ID] = binName
	return nil
}

// SetLength records the length of an already-assigned contig. Unknown
// contigs are ignored. Contig-to-bin tables do not carry lengths, so they
// are backfilled from the coverage table.
func (s *BinSet) SetLength(contigID string, length int) {
	name, ok := s.byContg[contigID]
	if !ok {
		return
	}
	s.bins[name].contigs[contigID] = Contig{ID: contigID, Length: length}
}

// SetQuality records quality metrics for the named bin.
func (s *BinSet) SetQuality(binName string, q Quality) {
	s.quality[binName] = q
}

// QualityOf returns the recorded quality for a bin, if any.
func (s *BinSet) QualityOf(binName string) (Quality, bool) {
	q, ok := s.quality[binName]
	return q, ok
}

// Bin returns the named bin, or nil when absent.
func (s *BinSet) Bin(name string) *Bin { return s.bins[name] }

// BinNames returns all bin names in sorted order.
func (s *BinSet) BinNames() []string {
	names := make([]string, 0, len(s.bins))
	for name := range s.bins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bins in the set.
func (s *BinSet) Len() int { return len(s.bins) }

// Empty reports whether the set contains no bins.
func (s *BinSet) Empty() bool { return len(s.bins) == 0 }

// Owner returns the name of the bin holding the contig, if any.
func (s *BinSet) Owner(contigID string) (string, bool) {
	name, ok := s.byContg[contigID]
	return name, ok
}

// ContigCount returns the total number of binned contigs across all bins.
func (s *BinSet) ContigCount() int { return len(s.byContg) }
