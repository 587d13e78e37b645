package refine

import (
	"context"
	"fmt"

	"github.com/corvid-bio/rookery/internal/bins"
	"github.com/corvid-bio/rookery/internal/ctxlog"
)

// dereplicate greedily merges bins whose pairwise identity meets the ANI
// threshold. Bins are visited in sorted name order; each bin merges into the
// first earlier survivor it matches, so merging is deterministic. Returns
// the (possibly unchanged) set and whether any merge happened.
func (l *Loop) dereplicate(ctx context.Context, set *bins.BinSet) (*bins.BinSet, bool, error) {
	logger := ctxlog.FromContext(ctx)
	names := set.BinNames()

	target := make(map[string]string)
	var survivors []string
	for _, name := range names {
		merged := false
		for _, s := range survivors {
			identity, err := l.ani.ANI(ctx, set.Bin(s), set.Bin(name))
			if err != nil {
				return nil, false, fmt.Errorf("ani between '%s' and '%s': %w", s, name, err)
			}
			if identity >= l.opts.ANI {
				logger.Info("Merging near-identical bins.", "from", name, "into", s, "ani", identity)
				target[name] = s
				merged = true
				break
			}
		}
		if !merged {
			survivors = append(survivors, name)
		}
	}

	if len(target) == 0 {
		return set, false, nil
	}

	out := bins.NewBinSet(set.Source)
	for _, name := range names {
		dest := name
		if s, ok := target[name]; ok {
			dest = s
		}
		for _, c := range set.Bin(name).Contigs() {
			if err := out.Assign(dest, c); err != nil {
				return nil, false, err
			}
		}
	}
	return out, true, nil
}
