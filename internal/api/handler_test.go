package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"perfreview/internal/importer"
	"perfreview/internal/parser"
	"perfreview/internal/store"
)

type testEnv struct {
	router    *gin.Engine
	store     store.Store
	uploadDir string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, opts, nil)
}

func newTestEnvWithLogger(t *testing.T, opts Options, log *zap.Logger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.New(store.Options{Driver: store.DriverJSON, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	h := NewHandler(st, importer.NewCoordinator(st, log), opts, log)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api"))
	return &testEnv{router: router, store: st, uploadDir: opts.UploadDir}
}

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

var twoBlockRows = [][]interface{}{
	{"姓名", "所在考评表", "指标名称", "360°评分-李四（80%）", "360°评分-李四评分说明"},
	{"张三", "研发考评表", "交付质量", "85", "交付及时"},
	{"", "", "代码评审", "80", ""},
	{"姓名", "所在考评表", "指标名称", "360°评分-王五（80%）"},
	{"赵六", "产品考评表", "需求质量", "90"},
}

func (e *testEnv) upload(t *testing.T, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/excel", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Response {
	t.Helper()
	var raw struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw), rec.Body.String())
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return Response{Code: raw.Code, Message: raw.Message}
}

func assertUploadDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary upload must be removed")
}

func TestImportExcel_Success(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.upload(t, "2024年第1季度.xlsx", workbookBytes(t, twoBlockRows), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report importer.Report
	resp := decode(t, rec, &report)
	assert.Equal(t, CodeOK, resp.Code)
	assert.Equal(t, 3, report.TotalRecords)
	assert.Equal(t, []string{"2024年第1季度"}, report.DetectedPeriods)
	assert.Equal(t, "2024年第1季度.xlsx", report.OriginalFilename)
	assertUploadDirEmpty(t, env.uploadDir)

	rec = env.do(t, http.MethodGet, "/api/import/performance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total   int               `json:"total"`
		Records []json.RawMessage `json:"records"`
	}
	decode(t, rec, &list)
	require.Equal(t, 3, list.Total)

	var last map[string]interface{}
	require.NoError(t, json.Unmarshal(list.Records[2], &last))
	assert.Equal(t, "赵六", last["employeeName"])
	assert.Equal(t, "90", last["peerEvaluationResult_王五"])
	assert.NotContains(t, last, "peerEvaluationResult_李四")

	rec = env.do(t, http.MethodGet, "/api/import/performance?employee=张三", "")
	decode(t, rec, &list)
	assert.Equal(t, 2, list.Total)

	rec = env.do(t, http.MethodGet, "/api/import/history", "")
	var history []map[string]interface{}
	decode(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, float64(3), history[0]["totalRecords"])

	rec = env.do(t, http.MethodGet, "/api/status", "")
	var status map[string]interface{}
	decode(t, rec, &status)
	assert.Equal(t, float64(3), status["records"])
	assert.Equal(t, float64(2), status["employees"])
}

func TestImportExcel_LogsProgress(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	env := newTestEnvWithLogger(t, Options{}, zap.New(core))

	rec := env.upload(t, "绩效.xlsx", workbookBytes(t, twoBlockRows), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var types []string
	for _, e := range logs.FilterMessage("import progress").All() {
		assert.Equal(t, "绩效.xlsx", e.ContextMap()["filename"])
		types = append(types, e.ContextMap()["type"].(string))
	}
	assert.Equal(t, []string{"start", "parsed", "saved"}, types)
}

func TestImportExcel_Rejections(t *testing.T) {
	env := newTestEnv(t, Options{MaxUploadBytes: 64 << 10})

	rec := env.do(t, http.MethodPost, "/api/import/excel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeNoFile, decode(t, rec, nil).Code)

	rec = env.upload(t, "scores.csv", []byte("a,b\n1,2\n"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadFile, decode(t, rec, nil).Code)

	rec = env.upload(t, "big.xlsx", bytes.Repeat([]byte("x"), 65<<10), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, CodeFileTooLarge, decode(t, rec, nil).Code)

	rec = env.upload(t, "broken.xlsx", []byte("not a workbook"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadFile, decode(t, rec, nil).Code)

	rec = env.upload(t, "one-row.xlsx", workbookBytes(t, [][]interface{}{{"姓名", "指标名称"}}), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec, nil)
	assert.Equal(t, CodeBadFile, resp.Code)
	assert.NotEmpty(t, resp.Message)

	rec = env.upload(t, "ok.xlsx", workbookBytes(t, twoBlockRows), map[string]string{"sheet": "不存在"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assertUploadDirEmpty(t, env.uploadDir)

	history, err := env.store.ListHistory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history, "failed uploads must not be saved")
}

func TestRecordEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{ImportTimeout: 5 * time.Second})
	rec := env.upload(t, "绩效.xlsx", workbookBytes(t, twoBlockRows), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	records, err := env.store.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	id := records[0].ID

	rec = env.do(t, http.MethodPut, "/api/import/performance/"+id, `{"comments":"表现稳定","reviewers":{"李四":{"result":"95"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated parser.IndicatorRecord
	decode(t, rec, &updated)
	assert.Equal(t, "表现稳定", updated.Comments)
	assert.Equal(t, "95", updated.Reviewers["李四"].Result)

	rec = env.do(t, http.MethodPut, "/api/import/performance/"+id, `{"employeeName":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/import/performance/"+id, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/import/performance/missing", `{"comments":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode(t, rec, nil).Code)

	rec = env.do(t, http.MethodDelete, "/api/import/performance/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/import/performance/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/import/employees/赵六", `{"department":"产品中心"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var counts map[string]int
	decode(t, rec, &counts)
	assert.Equal(t, 1, counts["updated"])

	rec = env.do(t, http.MethodDelete, "/api/import/employees/张三", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &counts)
	assert.Equal(t, 1, counts["deleted"])

	rec = env.do(t, http.MethodDelete, "/api/import/employees/张三", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	records, err = env.store.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "产品中心", records[0].Department)
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.upload(t, "绩效.xlsx", workbookBytes(t, twoBlockRows), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/import/performance/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestFilterRecords(t *testing.T) {
	records := []parser.IndicatorRecord{
		{RecordFields: parser.RecordFields{EmployeeName: "张三", EvaluationPeriod: "Q1", Department: "A"}},
		{RecordFields: parser.RecordFields{EmployeeName: "张三", EvaluationPeriod: "Q2", Department: "A"}},
		{RecordFields: parser.RecordFields{EmployeeName: "李四", EvaluationPeriod: "Q1", Department: "B"}},
	}
	assert.Len(t, filterRecords(records, "", "", ""), 3)
	assert.Len(t, filterRecords(records, "张三", "", ""), 2)
	assert.Len(t, filterRecords(records, "", "Q1", "B"), 1)
	assert.Empty(t, filterRecords(records, "王五", "", ""))
}
