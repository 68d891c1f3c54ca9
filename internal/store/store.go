package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"perfreview/internal/model"
	"perfreview/internal/parser"
)

// ErrNotFound 记录、员工或导入不存在
var ErrNotFound = errors.New("not found")

// DefaultHistoryLimit 导入历史保留条数
const DefaultHistoryLimit = 100

// 存储驱动
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Store 导入结果存储
type Store interface {
	// Save 保存一次导入，返回导入 ID
	Save(ctx context.Context, doc *model.ImportDocument) (string, error)
	// ListHistory 导入历史，最新在前
	ListHistory(ctx context.Context) ([]model.HistoryEntry, error)
	// Records 全部导入合并后的记录，最新导入在前
	Records(ctx context.Context) ([]parser.IndicatorRecord, error)
	UpdateRecord(ctx context.Context, id string, patch *model.RecordPatch) (*parser.IndicatorRecord, error)
	DeleteRecord(ctx context.Context, id string) error
	// UpdateEmployee 修改某员工全部记录的身份字段，返回受影响记录数
	UpdateEmployee(ctx context.Context, name string, patch *model.EmployeePatch) (int, error)
	// DeleteEmployee 删除某员工全部记录，返回删除数
	DeleteEmployee(ctx context.Context, name string) (int, error)
	Status(ctx context.Context) (*model.StoreStatus, error)
	Close() error
}

// Options 存储配置
type Options struct {
	Driver       string
	DataDir      string
	HistoryLimit int
}

// New 按驱动创建存储
func New(opts Options) (Store, error) {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	switch strings.ToLower(opts.Driver) {
	case "", DriverJSON:
		return NewJSONStore(opts.DataDir, opts.HistoryLimit)
	case DriverSQLite:
		return NewSQLiteStore(opts.DataDir, opts.HistoryLimit)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// countEmployees 统计不同员工数
func countEmployees(records []parser.IndicatorRecord) int {
	seen := make(map[string]struct{})
	for _, rec := range records {
		seen[rec.EmployeeName] = struct{}{}
	}
	return len(seen)
}
