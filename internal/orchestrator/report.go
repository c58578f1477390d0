package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/reconcrawl/internal/family"
)

// familyRow is one line of the INDEX.md family table, kept separate
// from family.Counters so sorting doesn't need a second pass over the
// registry's internal map.
type familyRow struct {
	key   string
	count int
}

// writeReport renders a short human-readable summary of the run next
// to manifest.json. Skipped entirely under dryRun: there's no output
// root worth writing into.
func (o *Orchestrator) writeReport(stopReason string) {
	if o.dryRun {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Crawl Summary\n\n")
	fmt.Fprintf(&b, "- Target: %s\n", targetLabel(o.cfg))
	fmt.Fprintf(&b, "- Stopped: %s\n", stopReason)
	fmt.Fprintf(&b, "- Duration: %s\n\n", time.Since(o.startedAt).Round(time.Second))

	fmt.Fprintf(&b, "## Budgets\n\n")
	fmt.Fprintf(&b, "| Kind | Used | Max |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| pages | %d | %d |\n", o.counts.Pages, o.cfg.PagesMax())
	fmt.Fprintf(&b, "| js | %d | %d |\n", o.counts.JS, o.cfg.JSMax())
	fmt.Fprintf(&b, "| api | %d | %d |\n\n", o.counts.API, o.cfg.APIMax())

	fmt.Fprintf(&b, "## Errors\n\n")
	if len(o.errorTally) == 0 {
		fmt.Fprintf(&b, "none\n\n")
	} else {
		for _, tally := range o.errorTallies() {
			fmt.Fprintf(&b, "- %s: %d\n", tally.Kind, tally.Count)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Top Families\n\n")
	rows := topFamilies(o.families.Snapshot(), 10)
	if len(rows) == 0 {
		fmt.Fprintf(&b, "none\n")
	} else {
		for _, row := range rows {
			fmt.Fprintf(&b, "- %s: %d\n", row.key, row.count)
		}
	}

	os.WriteFile(filepath.Join(o.outputRoot, "INDEX.md"), []byte(b.String()), 0644)
}

func topFamilies(counters map[string]family.Counters, limit int) []familyRow {
	rows := make([]familyRow, 0, len(counters))
	for key, c := range counters {
		rows = append(rows, familyRow{key: key, count: c.Count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
