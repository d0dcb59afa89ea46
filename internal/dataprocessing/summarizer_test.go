package dataprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiviz/internal/domain"
)

func f(v float64) *float64 { return &v }

func sampleTable() *domain.Table {
	return &domain.Table{
		Columns: RequiredColumns,
		Rows: []domain.Row{
			{EquipmentName: "P1", Type: "Pump", Flowrate: f(10), Pressure: f(5), Temperature: f(70)},
			{EquipmentName: "P2", Type: "Pump", Flowrate: f(20), Pressure: f(7), Temperature: f(80)},
			{EquipmentName: "V1", Type: "Valve", Flowrate: f(5), Pressure: f(2), Temperature: f(30)},
		},
	}
}

func TestSummarizer_Summarize(t *testing.T) {
	ctx := context.Background()
	summary := NewSummarizer(nil).Summarize(ctx, sampleTable())

	assert.Equal(t, 3, summary.TotalCount)
	assert.Equal(t, 11.67, summary.AvgFlowrate)
	assert.Equal(t, 4.67, summary.AvgPressure)
	assert.Equal(t, 60.0, summary.AvgTemperature)
	assert.Equal(t, map[string]int{"Pump": 2, "Valve": 1}, summary.TypeDistribution)

	require.Contains(t, summary.TypeStats, "Pump")
	assert.Equal(t, domain.TypeStat{Count: 2, AvgTemperature: 75.0, AvgPressure: 6.0}, summary.TypeStats["Pump"])
	assert.Equal(t, domain.TypeStat{Count: 1, AvgTemperature: 30.0, AvgPressure: 2.0}, summary.TypeStats["Valve"])
}

func TestSummarizer_Summarize_EmptyTable(t *testing.T) {
	tests := []struct {
		name  string
		table *domain.Table
	}{
		{name: "nil table", table: nil},
		{name: "no rows", table: &domain.Table{Columns: RequiredColumns}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := NewSummarizer(nil).Summarize(context.Background(), tt.table)

			assert.Equal(t, 0, summary.TotalCount)
			assert.Equal(t, 0.0, summary.AvgFlowrate)
			assert.Equal(t, 0.0, summary.AvgPressure)
			assert.Equal(t, 0.0, summary.AvgTemperature)
			assert.Empty(t, summary.TypeDistribution)
			assert.Empty(t, summary.TypeStats)
		})
	}
}

func TestSummarizer_Summarize_NoParseableValues(t *testing.T) {
	table := &domain.Table{
		Columns: RequiredColumns,
		Rows: []domain.Row{
			{EquipmentName: "P1", Type: "Pump"},
			{EquipmentName: "P2", Type: "Pump"},
		},
	}

	summary := NewSummarizer(nil).Summarize(context.Background(), table)

	assert.Equal(t, 2, summary.TotalCount)
	assert.Equal(t, 0.0, summary.AvgFlowrate)
	assert.Equal(t, 0.0, summary.AvgPressure)
	assert.Equal(t, 0.0, summary.AvgTemperature)
	assert.Equal(t, domain.TypeStat{Count: 2, AvgTemperature: 0.0, AvgPressure: 0.0}, summary.TypeStats["Pump"])
}

func TestSummarizer_Summarize_EmptyTypeExcluded(t *testing.T) {
	table := &domain.Table{
		Columns: RequiredColumns,
		Rows: []domain.Row{
			{EquipmentName: "P1", Type: "Pump", Temperature: f(70)},
			{EquipmentName: "X1", Type: "", Temperature: f(100)},
			{EquipmentName: "V1", Type: "Valve", Temperature: f(30)},
		},
	}

	summary := NewSummarizer(nil).Summarize(context.Background(), table)

	// Untyped rows still count toward totals but not toward distribution.
	assert.Equal(t, 3, summary.TotalCount)
	assert.Equal(t, 66.67, summary.AvgTemperature)
	assert.Equal(t, map[string]int{"Pump": 1, "Valve": 1}, summary.TypeDistribution)

	total := 0
	for _, st := range summary.TypeStats {
		total += st.Count
	}
	typed := 0
	for _, c := range summary.TypeDistribution {
		typed += c
	}
	assert.Equal(t, typed, total)
}

func TestSummarizer_TypeStatsFromRawTable(t *testing.T) {
	ctx := context.Background()
	s := NewSummarizer(nil)

	stats := s.TypeStatsFromRawTable(ctx, sampleTable())
	require.Len(t, stats, 2)
	assert.Equal(t, domain.TypeStat{Count: 2, AvgTemperature: 75.0, AvgPressure: 6.0}, stats["Pump"])
}

func TestSummarizer_TypeStatsFromRawTable_MissingColumns(t *testing.T) {
	tests := []struct {
		name  string
		table *domain.Table
	}{
		{name: "nil table", table: nil},
		{name: "no rows", table: &domain.Table{Columns: RequiredColumns}},
		{
			name: "missing pressure column",
			table: &domain.Table{
				Columns: []string{"Equipment Name", "Type", "Temperature"},
				Rows:    []domain.Row{{Type: "Pump", Temperature: f(70)}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := NewSummarizer(nil).TypeStatsFromRawTable(context.Background(), tt.table)
			assert.NotNil(t, stats)
			assert.Empty(t, stats)
		})
	}
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []string{"Pump", "Valve"}, Types(sampleTable()))
	assert.Empty(t, Types(nil))
}
