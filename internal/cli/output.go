package cli

import (
	"fmt"
	"io"
	"sort"

	"go.opencensus.io/stats/view"

	"github.com/xinjiayu/rxcore"
)

// writeSignals prints one line per signal: "next <v>", then "error <msg>"
// or "complete".
func writeSignals(w io.Writer, items []string, err error) {
	for _, item := range items {
		fmt.Fprintf(w, "next %s\n", item)
	}
	if err != nil {
		fmt.Fprintf(w, "error %s\n", err)
		return
	}
	fmt.Fprintln(w, "complete")
}

// writeMetrics prints a line per scheduler for every scheduler view.
func writeMetrics(w io.Writer) error {
	for _, v := range rxcore.SchedulerViews() {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			return fmt.Errorf("failed to read view %s: %w", v.Name, err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			scheduler := ""
			for _, tg := range row.Tags {
				if tg.Key == rxcore.SchedulerTagKey {
					scheduler = tg.Value
				}
			}
			lines = append(lines, fmt.Sprintf("metric %s scheduler=%s %s", v.Name, scheduler, formatData(row.Data)))
		}
		sort.Strings(lines)
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func formatData(data view.AggregationData) string {
	switch d := data.(type) {
	case *view.CountData:
		return fmt.Sprintf("%d", d.Value)
	case *view.DistributionData:
		return fmt.Sprintf("count=%d", d.Count)
	default:
		return fmt.Sprintf("%v", d)
	}
}
