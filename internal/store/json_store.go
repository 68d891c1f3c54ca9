package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"perfreview/internal/model"
	"perfreview/internal/parser"
)

const docStampLayout = "20060102T150405.000000000"

// JSONStore 文件存储：每次导入一个 JSON 文档，外加一份导入历史
//
//	<dataDir>/imports/<stamp>_<importId>.json
//	<dataDir>/import_history.json
type JSONStore struct {
	dataDir      string
	historyLimit int

	mu sync.Mutex
}

// NewJSONStore 创建文件存储
func NewJSONStore(dataDir string, historyLimit int) (*JSONStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir is required")
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	s := &JSONStore{dataDir: dataDir, historyLimit: historyLimit}
	if err := ensureDir(s.importsDir()); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if !fileExists(s.historyPath()) {
		if err := writeJSONAtomic(s.historyPath(), []model.HistoryEntry{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *JSONStore) importsDir() string {
	return filepath.Join(s.dataDir, "imports")
}

func (s *JSONStore) historyPath() string {
	return filepath.Join(s.dataDir, "import_history.json")
}

func docFileName(doc *model.ImportDocument) string {
	return fmt.Sprintf("%s_%s.json", doc.ImportedAt.UTC().Format(docStampLayout), doc.ImportID)
}

// Save 写入导入文档并把条目插到历史最前面
func (s *JSONStore) Save(ctx context.Context, doc *model.ImportDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareDocument(doc)
	name := docFileName(doc)
	if err := writeJSONAtomic(filepath.Join(s.importsDir(), name), doc); err != nil {
		return "", fmt.Errorf("write import document: %w", err)
	}

	entry := doc.Entry()
	entry.Document = name
	if err := s.appendHistoryLocked(entry); err != nil {
		return "", fmt.Errorf("write import history: %w", err)
	}
	return doc.ImportID, nil
}

// prepareDocument 补全导入 ID / 时间并保证切片非 nil
func prepareDocument(doc *model.ImportDocument) {
	if doc.ImportID == "" {
		doc.ImportID = uuid.New().String()
	}
	if doc.ImportedAt.IsZero() {
		doc.ImportedAt = time.Now().UTC()
	}
	if doc.DetectedPeriods == nil {
		doc.DetectedPeriods = []string{}
	}
	if doc.Headers == nil {
		doc.Headers = []string{}
	}
	if doc.Records == nil {
		doc.Records = []parser.IndicatorRecord{}
	}
	doc.TotalRecords = len(doc.Records)
}

func (s *JSONStore) appendHistoryLocked(entry model.HistoryEntry) error {
	history := []model.HistoryEntry{}
	if fileExists(s.historyPath()) {
		if err := readJSON(s.historyPath(), &history); err != nil {
			return err
		}
	}
	history = append([]model.HistoryEntry{entry}, history...)
	if len(history) > s.historyLimit {
		history = history[:s.historyLimit]
	}
	return writeJSONAtomic(s.historyPath(), history)
}

// ListHistory 返回导入历史（最新在前）
func (s *JSONStore) ListHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := []model.HistoryEntry{}
	if !fileExists(s.historyPath()) {
		return history, nil
	}
	if err := readJSON(s.historyPath(), &history); err != nil {
		return nil, fmt.Errorf("read import history: %w", err)
	}
	return history, nil
}

// storedDoc 已落盘的文档及其路径
type storedDoc struct {
	path string
	doc  *model.ImportDocument
}

// loadDocsLocked 读取全部导入文档，按导入时间倒序
func (s *JSONStore) loadDocsLocked() ([]storedDoc, error) {
	entries, err := os.ReadDir(s.importsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	docs := make([]storedDoc, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.importsDir(), e.Name())
		var doc model.ImportDocument
		if err := readJSON(path, &doc); err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		docs = append(docs, storedDoc{path: path, doc: &doc})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].doc, docs[j].doc
		if !a.ImportedAt.Equal(b.ImportedAt) {
			return a.ImportedAt.After(b.ImportedAt)
		}
		return a.ImportID > b.ImportID
	})
	return docs, nil
}

// Records 合并全部导入的记录
func (s *JSONStore) Records(ctx context.Context) ([]parser.IndicatorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocsLocked()
	if err != nil {
		return nil, err
	}
	records := make([]parser.IndicatorRecord, 0)
	for _, d := range docs {
		records = append(records, d.doc.Records...)
	}
	return records, nil
}

// UpdateRecord 修改单条记录并重写所在文档
func (s *JSONStore) UpdateRecord(ctx context.Context, id string, patch *model.RecordPatch) (*parser.IndicatorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocsLocked()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		for i := range d.doc.Records {
			if d.doc.Records[i].ID != id {
				continue
			}
			patch.Apply(&d.doc.Records[i])
			if err := writeJSONAtomic(d.path, d.doc); err != nil {
				return nil, fmt.Errorf("write import document: %w", err)
			}
			updated := d.doc.Records[i]
			return &updated, nil
		}
	}
	return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
}

// DeleteRecord 删除单条记录
func (s *JSONStore) DeleteRecord(ctx context.Context, id string) error {
	n, err := s.rewriteRecords(ctx, func(rec *parser.IndicatorRecord) (keep, changed bool) {
		if rec.ID == id {
			return false, true
		}
		return true, false
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateEmployee 修改某员工全部记录
func (s *JSONStore) UpdateEmployee(ctx context.Context, name string, patch *model.EmployeePatch) (int, error) {
	n, err := s.rewriteRecords(ctx, func(rec *parser.IndicatorRecord) (keep, changed bool) {
		if rec.EmployeeName != name {
			return true, false
		}
		patch.Apply(rec)
		return true, true
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("employee %s: %w", name, ErrNotFound)
	}
	return n, nil
}

// DeleteEmployee 删除某员工全部记录
func (s *JSONStore) DeleteEmployee(ctx context.Context, name string) (int, error) {
	n, err := s.rewriteRecords(ctx, func(rec *parser.IndicatorRecord) (keep, changed bool) {
		if rec.EmployeeName == name {
			return false, true
		}
		return true, false
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("employee %s: %w", name, ErrNotFound)
	}
	return n, nil
}

// rewriteRecords 遍历全部文档的记录，只重写有变化的文档；返回变化的记录数
func (s *JSONStore) rewriteRecords(ctx context.Context, fn func(rec *parser.IndicatorRecord) (keep, changed bool)) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocsLocked()
	if err != nil {
		return 0, err
	}

	total := 0
	totals := make(map[string]int)
	for _, d := range docs {
		changed := 0
		kept := d.doc.Records[:0]
		for i := range d.doc.Records {
			rec := d.doc.Records[i]
			keep, ch := fn(&rec)
			if ch {
				changed++
			}
			if keep {
				kept = append(kept, rec)
			}
		}
		if changed == 0 {
			continue
		}
		d.doc.Records = kept
		d.doc.TotalRecords = len(kept)
		if err := writeJSONAtomic(d.path, d.doc); err != nil {
			return total, fmt.Errorf("write import document: %w", err)
		}
		total += changed
		totals[d.doc.ImportID] = len(kept)
	}
	if len(totals) > 0 {
		if err := s.syncHistoryTotalsLocked(totals); err != nil {
			return total, fmt.Errorf("write import history: %w", err)
		}
	}
	return total, nil
}

// syncHistoryTotalsLocked 删除记录后同步历史中的记录数
func (s *JSONStore) syncHistoryTotalsLocked(totals map[string]int) error {
	history := []model.HistoryEntry{}
	if !fileExists(s.historyPath()) {
		return nil
	}
	if err := readJSON(s.historyPath(), &history); err != nil {
		return err
	}
	for i := range history {
		if n, ok := totals[history[i].ImportID]; ok {
			history[i].TotalRecords = n
		}
	}
	return writeJSONAtomic(s.historyPath(), history)
}

// Status 存储概况
func (s *JSONStore) Status(ctx context.Context) (*model.StoreStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocsLocked()
	if err != nil {
		return nil, err
	}
	status := &model.StoreStatus{Driver: DriverJSON, Imports: len(docs)}
	records := make([]parser.IndicatorRecord, 0)
	for _, d := range docs {
		records = append(records, d.doc.Records...)
	}
	status.Records = len(records)
	status.Employees = countEmployees(records)
	if len(docs) > 0 {
		status.LastImportAt = docs[0].doc.ImportedAt
	}
	return status, nil
}

// Close 文件存储无需释放资源
func (s *JSONStore) Close() error {
	return nil
}
