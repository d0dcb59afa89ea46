package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"equiviz/internal/domain"
)

// Summarizer computes aggregate and per-type statistics for a table.
// It is the single source of truth for summary semantics: the upload
// pipeline and the backfill path for older records both go through it.
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a summarizer. A nil logger falls back to the
// default slog logger.
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger.With(slog.String("component", "summarizer"))}
}

// Summarize reduces a table into its summary. It never fails: an empty
// table yields zeroed aggregates, and a column with no parseable values
// yields a mean of exactly 0.0 rather than NaN. That zero-for-empty
// rule is kept for compatibility with existing consumers.
func (s *Summarizer) Summarize(ctx context.Context, table *domain.Table) *domain.Summary {
	summary := &domain.Summary{
		TypeDistribution: map[string]int{},
		TypeStats:        map[string]domain.TypeStat{},
	}
	if table == nil {
		return summary
	}

	summary.TotalCount = len(table.Rows)
	summary.AvgFlowrate = meanOf(table.Rows, func(r domain.Row) *float64 { return r.Flowrate })
	summary.AvgPressure = meanOf(table.Rows, func(r domain.Row) *float64 { return r.Pressure })
	summary.AvgTemperature = meanOf(table.Rows, func(r domain.Row) *float64 { return r.Temperature })

	for _, row := range table.Rows {
		if row.Type == "" {
			continue
		}
		summary.TypeDistribution[row.Type]++
	}
	summary.TypeStats = s.typeStats(table.Rows)

	s.logger.DebugContext(ctx, "summary computed",
		slog.Int("total_count", summary.TotalCount),
		slog.Int("type_count", len(summary.TypeDistribution)))

	return summary
}

// TypeStatsFromRawTable reconstructs per-type statistics from a stored
// raw table. It exists for records persisted before type stats were
// part of the summary. If the table lacks any of the Type, Temperature
// or Pressure columns it returns an empty map rather than failing.
func (s *Summarizer) TypeStatsFromRawTable(ctx context.Context, table *domain.Table) map[string]domain.TypeStat {
	if table == nil || len(table.Rows) == 0 {
		return map[string]domain.TypeStat{}
	}
	for _, col := range []string{"Type", "Temperature", "Pressure"} {
		if !table.HasColumn(col) {
			s.logger.WarnContext(ctx, "stored table missing column, skipping type stats backfill",
				slog.String("column", col))
			return map[string]domain.TypeStat{}
		}
	}
	return s.typeStats(table.Rows)
}

// typeStats groups rows by non-empty Type and computes the per-type
// count and means, with the same rounding and zero-for-empty rules as
// the top-level aggregates.
func (s *Summarizer) typeStats(rows []domain.Row) map[string]domain.TypeStat {
	grouped := map[string][]domain.Row{}
	for _, row := range rows {
		if row.Type == "" {
			continue
		}
		grouped[row.Type] = append(grouped[row.Type], row)
	}

	stats := make(map[string]domain.TypeStat, len(grouped))
	for typ, sub := range grouped {
		stats[typ] = domain.TypeStat{
			Count:          len(sub),
			AvgTemperature: meanOf(sub, func(r domain.Row) *float64 { return r.Temperature }),
			AvgPressure:    meanOf(sub, func(r domain.Row) *float64 { return r.Pressure }),
		}
	}
	return stats
}

// Types returns the distinct non-empty type labels of a table, sorted.
func Types(table *domain.Table) []string {
	seen := map[string]bool{}
	var out []string
	if table == nil {
		return out
	}
	for _, row := range table.Rows {
		if row.Type == "" || seen[row.Type] {
			continue
		}
		seen[row.Type] = true
		out = append(out, row.Type)
	}
	sort.Strings(out)
	return out
}

// meanOf computes the arithmetic mean over rows where the field is
// present, rounded to two decimals. Zero qualifying rows yield 0.0.
func meanOf(rows []domain.Row, field func(domain.Row) *float64) float64 {
	var sum float64
	var n int
	for _, row := range rows {
		if v := field(row); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0.0
	}
	return round2(sum / float64(n))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
