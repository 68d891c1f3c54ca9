package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"perfreview/internal/model"
)

// 定宽 UTC 时间，保证按字符串排序即按时间排序
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// insertImport 写入导入记录
func insertImport(ctx context.Context, tx *sql.Tx, doc *model.ImportDocument) error {
	periods, err := json.Marshal(doc.DetectedPeriods)
	if err != nil {
		return err
	}
	headers, err := json.Marshal(doc.Headers)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, imported_at, original_filename, sheet_name, detected_periods, headers, total_records)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ImportID, doc.ImportedAt.UTC().Format(sqliteTimeLayout), doc.OriginalFilename,
		doc.SheetName, string(periods), string(headers), doc.TotalRecords)
	if err != nil {
		return fmt.Errorf("failed to create import log: %w", err)
	}
	return nil
}

// ListHistory 导入历史（最新在前，最多 historyLimit 条）
func (s *SQLiteStore) ListHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, imported_at, original_filename, sheet_name, detected_periods, total_records
		FROM imports
		ORDER BY imported_at DESC, id DESC
		LIMIT ?
	`, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}
	defer rows.Close()

	history := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry      model.HistoryEntry
			importedAt string
			periods    string
		)
		if err := rows.Scan(&entry.ImportID, &importedAt, &entry.OriginalFilename,
			&entry.SheetName, &periods, &entry.TotalRecords); err != nil {
			return nil, err
		}
		if entry.ImportedAt, err = time.Parse(sqliteTimeLayout, importedAt); err != nil {
			return nil, fmt.Errorf("parse imported_at: %w", err)
		}
		if err := json.Unmarshal([]byte(periods), &entry.DetectedPeriods); err != nil {
			return nil, fmt.Errorf("decode detected_periods: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// refreshImportTotals 删除记录后同步各导入的记录数
func refreshImportTotals(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE imports SET total_records = (
			SELECT COUNT(*) FROM indicator_records WHERE import_id = imports.id
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

func lastImportAt(ctx context.Context, db *sql.DB) (time.Time, error) {
	var last sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT MAX(imported_at) FROM imports`).Scan(&last); err != nil {
		return time.Time{}, fmt.Errorf("query last import: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return time.Parse(sqliteTimeLayout, last.String)
}
