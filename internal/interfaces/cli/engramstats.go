package cli

import (
	"fmt"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/RSBalchII/anchor/internal/app"
)

// NewEngramStatsCmd builds `anchor engram-stats`: reports the Engram
// sidecar's cache hit/miss counters for operability, per §6.5. It bootstraps
// the full engine (so the metrics collector reflects the same registrations
// Search uses) and reads the counters straight out of the in-process
// Prometheus registry rather than standing up an HTTP scrape endpoint.
func NewEngramStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engram-stats",
		Short: "Report Engram sidecar cache hit/miss counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			a, err := app.Bootstrap(ctx, cliCtx.Config)
			if err != nil {
				return fmt.Errorf("engine bootstrap failed: %w", err)
			}
			defer a.Close()

			families, err := a.Collector.Gather()
			if err != nil {
				return fmt.Errorf("engram-stats: gathering metrics failed: %w", err)
			}

			hits := counterTotal(families, "anchor_query_engram_cache_hits_total")
			misses := counterTotal(families, "anchor_query_engram_cache_misses_total")
			total := hits + misses
			ratio := 0.0
			if total > 0 {
				ratio = hits / total
			}

			return PrintResult(cmd, map[string]interface{}{
				"cache_hits":    hits,
				"cache_misses":  misses,
				"hit_ratio":     ratio,
				"total_lookups": total,
			})
		},
	}
}

// counterTotal sums every label combination of the named counter family.
// Returns 0 if the family has not been observed yet (e.g. a fresh process
// with no prior lookups).
func counterTotal(families []*dto.MetricFamily, name string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				sum += c.GetValue()
			}
		}
		return sum
	}
	return 0
}
