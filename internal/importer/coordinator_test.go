package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"perfreview/internal/parser"
	"perfreview/internal/store"
	"perfreview/internal/workbook"
)

func writeWorkbook(t *testing.T, dir, name string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

var reviewRows = [][]interface{}{
	{"姓名", "所在考评表", "维度名称", "指标名称", "权重", "360°评分-李四（80%）", "360°评分-李四评分说明"},
	{"张三", "研发考评表", "业绩", "交付质量", "40%", "85", "交付及时"},
	{"", "", "", "代码评审", "很多", "80", ""},
	{"", "", "", "工作业绩总分", "", "", ""},
}

func newTestCoordinator(t *testing.T) (*Coordinator, store.Store, *observer.ObservedLogs) {
	t.Helper()
	st, err := store.New(store.Options{Driver: store.DriverJSON, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	core, logs := observer.New(zap.InfoLevel)
	c := NewCoordinator(st, zap.New(core))
	c.now = func() time.Time { return time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC) }
	c.newID = func() string { return "0123456789abcdef" }
	return c, st, logs
}

func TestImport_SavesRecordsAndLogsDiagnostics(t *testing.T) {
	c, st, logs := newTestCoordinator(t)
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "upload.xlsx", reviewRows)

	var events []string
	report, err := c.Import(context.Background(), Options{
		FilePath:         path,
		OriginalFilename: "2024年第1季度绩效.xlsx",
		OnProgress:       func(e ProgressEvent) { events = append(events, e.Type) },
	})
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef", report.ImportID)
	assert.Equal(t, "Sheet1", report.SheetName)
	assert.Equal(t, []string{"Sheet1"}, report.Sheets)
	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, []string{"2024年第1季度"}, report.DetectedPeriods)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, []string{"start", "parsed", "saved"}, events)

	assert.Equal(t, 1, logs.FilterMessage("row skipped or adjusted").Len())
	assert.Equal(t, 1, logs.FilterMessage("import completed").Len())

	records, err := st.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "20240315101500-01234567-2", records[0].ID)
	assert.Equal(t, "张三", records[1].EmployeeName)
	assert.Equal(t, parser.ReviewerScore{Result: "80"}, records[1].Reviewers["李四"])

	history, err := st.ListHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024年第1季度绩效.xlsx", history[0].OriginalFilename)
}

func TestImport_StructuralErrorSavesNothing(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	path := writeWorkbook(t, t.TempDir(), "bad.xlsx", [][]interface{}{{"只有一行"}})

	_, err := c.Import(context.Background(), Options{FilePath: path})
	assert.ErrorIs(t, err, parser.ErrTooFewRows)

	history, err := st.ListHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestImport_Rejections(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	dir := t.TempDir()

	csv := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b"), 0o644))
	_, err := c.Import(context.Background(), Options{FilePath: csv})
	assert.ErrorIs(t, err, workbook.ErrUnsupportedFormat)

	path := writeWorkbook(t, dir, "ok.xlsx", reviewRows)
	_, err = c.Import(context.Background(), Options{FilePath: path, SheetName: "不存在"})
	assert.ErrorIs(t, err, workbook.ErrNoSheet)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Import(ctx, Options{FilePath: path})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreview_DoesNotSave(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	path := writeWorkbook(t, t.TempDir(), "2024-Q2.xlsx", reviewRows)

	result, sheets, err := c.Preview(context.Background(), Options{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1"}, sheets)
	assert.Equal(t, 2, result.TotalRecords)
	assert.Equal(t, "preview-2", result.Records[0].ID)
	assert.Equal(t, "2024年第2季度", result.Records[0].EvaluationPeriod)

	records, err := st.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestImport_ReportsDurationInMilliseconds(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	start := time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC)
	calls := 0
	c.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}
	path := writeWorkbook(t, t.TempDir(), "upload.xlsx", reviewRows)

	report, err := c.Import(context.Background(), Options{FilePath: path})
	require.NoError(t, err)
	assert.Positive(t, report.DurationMS)
	assert.Zero(t, report.DurationMS%250)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(report.DurationMS), raw["durationMs"])
	assert.NotContains(t, raw, "duration")
}
