package pipeline

import (
	"context"

	"github.com/corvid-bio/rookery/internal/config"
	"github.com/corvid-bio/rookery/internal/ctxlog"
	"github.com/corvid-bio/rookery/internal/marker"
)

// SelectBranch resolves mutually exclusive task variants against the run's
// read mode. Exactly one variant per logical output survives; the rest are
// suppressed before graph construction, so only the selected variant can
// ever run. Task order is preserved.
//
// Markers from more than one variant of the same logical output mean a
// differently-configured prior run left conflicting state behind; that is an
// AmbiguousBranchStateError rather than a silent pick.
func SelectBranch(ctx context.Context, tasks []*Task, mode config.ReadMode, store *marker.Store) ([]*Task, error) {
	logger := ctxlog.FromContext(ctx)

	markedVariants := make(map[string][]string)
	for _, t := range tasks {
		if t.IsVariant() && store.Exists(t.Marker) {
			markedVariants[t.LogicalOutput] = append(markedVariants[t.LogicalOutput], t.ID)
		}
	}
	for logical, variants := range markedVariants {
		if len(variants) > 1 {
			return nil, &AmbiguousBranchStateError{LogicalOutput: logical, Variants: variants}
		}
	}

	selected := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsVariant() {
			selected = append(selected, t)
			continue
		}
		if t.Variant != mode {
			logger.Debug("Suppressing non-selected branch variant.", "task", t.ID, "variant", t.Variant.String(), "mode", mode.String())
			continue
		}
		if marked := markedVariants[t.LogicalOutput]; len(marked) == 1 && marked[0] != t.ID {
			// A single stale marker from the other variant: the selected one
			// re-runs and overwrites the logical output, so warn and proceed.
			logger.Warn("Marker exists for a differently-configured variant; it will be superseded.",
				"logical_output", t.LogicalOutput, "stale_variant", marked[0], "selected", t.ID)
		}
		selected = append(selected, t)
	}
	return selected, nil
}
