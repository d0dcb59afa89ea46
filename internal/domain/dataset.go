// Package domain holds the core types shared between the ingestion
// pipeline, the store, and the HTTP transport.
package domain

import "time"

// Row is a single equipment record parsed from an uploaded file.
// Numeric fields are pointers: nil marks a missing or unparseable cell,
// which is excluded from aggregates but does not invalidate the row.
type Row struct {
	EquipmentName string   `json:"equipment_name"`
	Type          string   `json:"type"`
	Flowrate      *float64 `json:"flowrate"`
	Pressure      *float64 `json:"pressure"`
	Temperature   *float64 `json:"temperature"`
}

// Table is an ordered sequence of rows sharing the same column set.
// Columns always lists the five canonical column names after a
// successful ingest.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// TypeStat holds the per-equipment-type aggregate block.
type TypeStat struct {
	Count          int     `json:"count"`
	AvgTemperature float64 `json:"avg_temperature"`
	AvgPressure    float64 `json:"avg_pressure"`
}

// Summary is the derived statistics record for one table. It is
// immutable once computed.
type Summary struct {
	TotalCount       int                 `json:"total_count"`
	AvgFlowrate      float64             `json:"avg_flowrate"`
	AvgPressure      float64             `json:"avg_pressure"`
	AvgTemperature   float64             `json:"avg_temperature"`
	TypeDistribution map[string]int      `json:"type_distribution"`
	TypeStats        map[string]TypeStat `json:"type_stats"`
}

// Dataset is one uploaded file's parsed table plus metadata, owned by
// exactly one user.
type Dataset struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"-"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
	Table      *Table    `json:"table,omitempty"`
	Summary    *Summary  `json:"summary,omitempty"`
}

// DatasetMeta is the listing projection of a dataset.
type DatasetMeta struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// User is a registered account that owns datasets.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the request-scoped caller identity resolved from the
// bearer token. Every store operation is scoped by it; there is no
// ambient global user context.
type Identity struct {
	UserID   int64
	Username string
}
