package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiviz/internal/dataprocessing"
	"equiviz/internal/domain"
	"equiviz/internal/report"
	"equiviz/internal/store"
)

const sampleCSV = `Equipment Name,Type,Flowrate,Pressure,Temperature
P1,Pump,10,5,70
P2,Pump,20,7,80
V1,Valve,5,2,30
`

type serviceFixture struct {
	service  *DatasetService
	datasets *store.DatasetStore
	identity domain.Identity
	other    domain.Identity
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db, nil)
	alice, err := users.CreateUser(context.Background(), "alice", "x")
	require.NoError(t, err)
	bob, err := users.CreateUser(context.Background(), "bob", "x")
	require.NoError(t, err)

	datasets := store.NewDatasetStore(db, nil, store.DefaultKeep)
	service := NewDatasetService(
		dataprocessing.NewIngestor(nil),
		dataprocessing.NewSummarizer(nil),
		datasets,
		report.NewRenderer(nil),
		nil,
	)

	return &serviceFixture{
		service:  service,
		datasets: datasets,
		identity: domain.Identity{UserID: alice.ID, Username: "alice"},
		other:    domain.Identity{UserID: bob.ID, Username: "bob"},
	}
}

func TestDatasetService_Upload(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Upload(ctx, fx.identity, "plant.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Greater(t, result.DatasetID, int64(0))

	assert.Equal(t, 3, result.Summary.TotalCount)
	assert.Equal(t, 11.67, result.Summary.AvgFlowrate)
	assert.Equal(t, map[string]int{"Pump": 2, "Valve": 1}, result.Summary.TypeDistribution)
	assert.Equal(t, domain.TypeStat{Count: 2, AvgTemperature: 75.0, AvgPressure: 6.0}, result.Summary.TypeStats["Pump"])

	ds, err := fx.service.Detail(ctx, fx.identity, result.DatasetID)
	require.NoError(t, err)
	assert.Len(t, ds.Table.Rows, 3)
}

func TestDatasetService_Upload_RejectsBadExtension(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Upload(context.Background(), fx.identity, "data.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestDatasetService_Upload_MissingColumnLeavesNoDataset(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	csv := "Equipment Name,Type,Flowrate,Temperature\nP1,Pump,1,2\n"
	_, err := fx.service.Upload(ctx, fx.identity, "bad.csv", strings.NewReader(csv))

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Pressure")

	metas, err := fx.service.List(ctx, fx.identity)
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestDatasetService_RetentionAcrossUploads(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	for i := 0; i < 6; i++ {
		_, err := fx.service.Upload(ctx, fx.identity, fmt.Sprintf("file%d.csv", i), strings.NewReader(sampleCSV))
		require.NoError(t, err)
	}

	metas, err := fx.service.List(ctx, fx.identity)
	require.NoError(t, err)
	require.Len(t, metas, 5)
	assert.Equal(t, "file5.csv", metas[0].FileName)
	assert.Equal(t, "file1.csv", metas[4].FileName)
}

func TestDatasetService_Summary_BackfillsTypeStats(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	// Simulate a record persisted before type stats existed.
	ingestor := dataprocessing.NewIngestor(nil)
	table, err := ingestor.Ingest(ctx, "old.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	summary := dataprocessing.NewSummarizer(nil).Summarize(ctx, table)
	summary.TypeStats = map[string]domain.TypeStat{}
	id, err := fx.datasets.Create(ctx, fx.identity.UserID, "old.csv", table, summary)
	require.NoError(t, err)

	got, err := fx.service.Summary(ctx, fx.identity, id)
	require.NoError(t, err)
	require.Contains(t, got.TypeStats, "Pump")
	assert.Equal(t, domain.TypeStat{Count: 2, AvgTemperature: 75.0, AvgPressure: 6.0}, got.TypeStats["Pump"])

	// The backfill is persisted so later reads see it directly.
	stored, err := fx.datasets.GetSummary(ctx, id, fx.identity.UserID)
	require.NoError(t, err)
	assert.Equal(t, got.TypeStats, stored.TypeStats)
}

func TestDatasetService_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Upload(ctx, fx.identity, "plant.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var nfe *domain.NotFoundError
	_, err = fx.service.Detail(ctx, fx.other, result.DatasetID)
	require.ErrorAs(t, err, &nfe)
	_, err = fx.service.Summary(ctx, fx.other, result.DatasetID)
	require.ErrorAs(t, err, &nfe)
	err = fx.service.Delete(ctx, fx.other, result.DatasetID)
	require.ErrorAs(t, err, &nfe)
}

func TestDatasetService_RenderPDF(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Upload(ctx, fx.identity, "plant.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	export, err := fx.service.RenderPDF(ctx, fx.identity, result.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "report_plant.csv.pdf", export.FileName)
	assert.Equal(t, "application/pdf", export.ContentType)
	assert.True(t, bytes.HasPrefix(export.Data, []byte("%PDF")))
}

func TestDatasetService_RenderXLSX(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	result, err := fx.service.Upload(ctx, fx.identity, "plant.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	export, err := fx.service.RenderXLSX(ctx, fx.identity, result.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, "export_plant.xlsx", export.FileName)
	assert.NotEmpty(t, export.Data)
}
