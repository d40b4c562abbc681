package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

func sampleResult() *service.SyncAllResult {
	started := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	return &service.SyncAllResult{
		CarrierCode: "harborline",
		Total:       2,
		Synced:      1,
		Failed:      1,
		Errors:      []string{"c2: carrier unavailable"},
		Results: []service.ClaimSyncOutcome{
			{
				ClaimID:        "c1",
				ClaimNumber:    "HLN-0001",
				Success:        true,
				PreviousStatus: carrier.InternalPending,
				NewStatus:      carrier.InternalApproved,
				CarrierStatus:  carrier.StatusApproved,
				Changed:        true,
				SyncedAt:       started.Add(time.Second),
			},
			{
				ClaimID:   "c2",
				Success:   false,
				ErrorCode: "HTTP_503",
				Error:     "carrier unavailable",
				SyncedAt:  started.Add(2 * time.Second),
			},
		},
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
}

func TestSyncReportWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSyncReportWriter(zap.NewNop()).Write(&buf, sampleResult()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Claims", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Claims")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Claim ID", rows[0][0])
	assert.Equal(t, []string{"c1", "HLN-0001", "synced", "pending", "approved", "approved", "TRUE"}, rows[1][:7])
	assert.Equal(t, "2024-06-01 09:30:01", rows[1][9])
	assert.Equal(t, "failed", rows[2][2])
	assert.Equal(t, "HTTP_503", rows[2][7])
	assert.Equal(t, "carrier unavailable", rows[2][8])

	total, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	failed, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "1", failed)
	duration, err := f.GetCellValue("Summary", "B7")
	require.NoError(t, err)
	assert.Equal(t, "3", duration)
}

func TestSyncReportWriter_EmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	result := &service.SyncAllResult{CarrierCode: "mock", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, NewSyncReportWriter(zap.NewNop()).Write(&buf, result))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Claims")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "carrier-sync-harborline-20240601-093000.xlsx", Filename(sampleResult()))
}
