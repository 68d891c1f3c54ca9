package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"perfreview/internal/model"
	"perfreview/internal/parser"
)

//go:embed schema.sql
var schemaFS embed.FS

// DBFileName SQLite 数据库文件名（位于 data_dir 下）
const DBFileName = "perfreview.db"

// SQLiteStore SQLite 存储
type SQLiteStore struct {
	db           *sql.DB
	historyLimit int
}

// NewSQLiteStore 在 dataDir 下打开（或创建）数据库
func NewSQLiteStore(dataDir string, historyLimit int) (*SQLiteStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir is required")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return OpenSQLite(filepath.Join(dataDir, DBFileName), historyLimit)
}

// OpenSQLite 打开指定路径的数据库
func OpenSQLite(dbPath string, historyLimit int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite 单连接
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	s := &SQLiteStore{db: db, historyLimit: historyLimit}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := s.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save 在一个事务内写入导入与全部记录
func (s *SQLiteStore) Save(ctx context.Context, doc *model.ImportDocument) (string, error) {
	prepareDocument(doc)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertImport(ctx, tx, doc); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indicator_records (id, import_id, seq, employee_name, data)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare insert record: %w", err)
	}
	defer stmt.Close()

	for i, rec := range doc.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, doc.ImportID, i, rec.EmployeeName, string(data)); err != nil {
			return "", fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit import: %w", err)
	}
	return doc.ImportID, nil
}

// Records 合并全部导入的记录：最新导入在前，导入内保持表格顺序
func (s *SQLiteStore) Records(ctx context.Context) ([]parser.IndicatorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.data
		FROM indicator_records r
		JOIN imports i ON i.id = r.import_id
		ORDER BY i.imported_at DESC, i.id DESC, r.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]parser.IndicatorRecord, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec parser.IndicatorRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateRecord 修改单条记录
func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, patch *model.RecordPatch) (*parser.IndicatorRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM indicator_records WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}

	var rec parser.IndicatorRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	patch.Apply(&rec)
	if err := updateRecordRow(ctx, tx, &rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &rec, nil
}

func updateRecordRow(ctx context.Context, tx *sql.Tx, rec *parser.IndicatorRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE indicator_records SET employee_name = ?, data = ? WHERE id = ?
	`, rec.EmployeeName, string(data), rec.ID)
	if err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteRecord 删除单条记录
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM indicator_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err := refreshImportTotals(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateEmployee 修改某员工全部记录
func (s *SQLiteStore) UpdateEmployee(ctx context.Context, name string, patch *model.EmployeePatch) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT data FROM indicator_records WHERE employee_name = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("query employee records: %w", err)
	}
	var records []parser.IndicatorRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return 0, err
		}
		var rec parser.IndicatorRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			rows.Close()
			return 0, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("employee %s: %w", name, ErrNotFound)
	}

	for i := range records {
		patch.Apply(&records[i])
		if err := updateRecordRow(ctx, tx, &records[i]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

// DeleteEmployee 删除某员工全部记录
func (s *SQLiteStore) DeleteEmployee(ctx context.Context, name string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM indicator_records WHERE employee_name = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("delete employee records: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, fmt.Errorf("employee %s: %w", name, ErrNotFound)
	}
	if err := refreshImportTotals(ctx, tx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// Status 存储概况
func (s *SQLiteStore) Status(ctx context.Context) (*model.StoreStatus, error) {
	status := &model.StoreStatus{Driver: DriverSQLite}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM imports),
			(SELECT COUNT(*) FROM indicator_records),
			(SELECT COUNT(DISTINCT employee_name) FROM indicator_records)
	`).Scan(&status.Imports, &status.Records, &status.Employees)
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}

	last, err := lastImportAt(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.LastImportAt = last
	return status, nil
}
