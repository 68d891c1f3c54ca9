package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfreview/internal/model"
	"perfreview/internal/parser"
	"perfreview/internal/store"
	"perfreview/internal/workbook"
)

// Coordinator 导入协调器：解码工作簿 -> 解析 -> 保存
type Coordinator struct {
	store store.Store
	log   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewCoordinator 创建导入协调器
func NewCoordinator(st store.Store, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store: st,
		log:   log,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Options 导入选项
type Options struct {
	FilePath         string
	OriginalFilename string // 用户上传时的文件名；为空时取 FilePath 的文件名
	SheetName        string // 为空时取第一个工作表

	// OnProgress 可选的进度回调
	OnProgress func(ProgressEvent)
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`    // start/parsed/saved/error
	Message   string      `json:"message"` // 事件消息
	Data      interface{} `json:"data"`    // 附加数据
	Timestamp time.Time   `json:"timestamp"`
}

// Report 导入报告
type Report struct {
	ImportID         string                `json:"importId,omitempty"`
	OriginalFilename string                `json:"originalFilename"`
	SheetName        string                `json:"sheetName"`
	Sheets           []string              `json:"sheets"`
	DetectedPeriods  []string              `json:"detectedPeriods"`
	TotalRecords     int                   `json:"totalRecords"`
	Headers          []string              `json:"headers"`
	Blocks           []parser.BlockSummary `json:"blocks"`
	Diagnostics      []parser.Diagnostic   `json:"diagnostics,omitempty"`
	DurationMS       int64                 `json:"durationMs"`
}

func (o Options) filename() string {
	if o.OriginalFilename != "" {
		return o.OriginalFilename
	}
	return filepath.Base(o.FilePath)
}

func (c *Coordinator) sendProgress(opts Options, evt ProgressEvent) {
	if opts.OnProgress == nil {
		return
	}
	evt.Timestamp = c.now()
	opts.OnProgress(evt)
}

// Preview 只解析不保存
func (c *Coordinator) Preview(ctx context.Context, opts Options) (*parser.Result, []string, error) {
	return c.parse(ctx, opts, "preview")
}

func (c *Coordinator) parse(ctx context.Context, opts Options, idPrefix string) (*parser.Result, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	filename := opts.filename()
	if !workbook.Supported(filename) {
		return nil, nil, fmt.Errorf("%w: %s", workbook.ErrUnsupportedFormat, filepath.Ext(filename))
	}

	// 上传的临时文件没有原始扩展名，按原始文件名选择解码器
	wb, err := workbook.OpenFile(opts.FilePath, workbook.Ext(filename))
	if err != nil {
		return nil, nil, err
	}

	sheet := opts.SheetName
	if sheet == "" {
		if sheet, err = wb.FirstSheet(); err != nil {
			return nil, nil, err
		}
	}
	rows, err := wb.Rows(sheet)
	if err != nil {
		return nil, nil, err
	}

	result, err := parser.Parse(rows, parser.Options{
		Filename:  filename,
		SheetName: sheet,
		IDPrefix:  idPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("parse sheet %q: %w", sheet, err)
	}
	return result, wb.SheetNames(), nil
}

// Import 执行导入。结构性错误直接返回，不会保存任何数据；
// 行级问题记录为 Diagnostic 并写入日志。
func (c *Coordinator) Import(ctx context.Context, opts Options) (*Report, error) {
	startTime := c.now()
	filename := opts.filename()
	log := c.log.With(zap.String("filename", filename))

	c.sendProgress(opts, ProgressEvent{
		Type:    "start",
		Message: "开始导入 Excel 文件",
		Data:    map[string]string{"filename": filename},
	})

	importID := c.newID()
	idPrefix := fmt.Sprintf("%s-%s", startTime.UTC().Format("20060102150405"), shortID(importID))
	log = log.With(zap.String("import_id", importID))

	result, sheets, err := c.parse(ctx, opts, idPrefix)
	if err != nil {
		log.Warn("import failed", zap.Error(err))
		c.sendProgress(opts, ProgressEvent{Type: "error", Message: fmt.Sprintf("导入失败: %v", err)})
		return nil, err
	}

	for _, d := range result.Diagnostics {
		log.Warn("row skipped or adjusted",
			zap.String("sheet", result.SheetName),
			zap.Int("row", d.Row),
			zap.Int("column", d.Column),
			zap.String("message", d.Message),
		)
	}
	c.sendProgress(opts, ProgressEvent{
		Type:    "parsed",
		Message: fmt.Sprintf("工作表「%s」解析出 %d 条记录", result.SheetName, result.TotalRecords),
		Data: map[string]interface{}{
			"sheet_name":    result.SheetName,
			"total_records": result.TotalRecords,
			"diagnostics":   len(result.Diagnostics),
		},
	})

	if err := ctx.Err(); err != nil {
		log.Warn("import cancelled before save", zap.Error(err))
		return nil, err
	}

	doc := model.NewImportDocument(importID, startTime, result)
	if _, err := c.store.Save(ctx, doc); err != nil {
		log.Error("save import failed", zap.Error(err))
		c.sendProgress(opts, ProgressEvent{Type: "error", Message: fmt.Sprintf("保存失败: %v", err)})
		return nil, fmt.Errorf("save import: %w", err)
	}

	elapsed := c.now().Sub(startTime)
	report := &Report{
		ImportID:         importID,
		OriginalFilename: result.OriginalFilename,
		SheetName:        result.SheetName,
		Sheets:           sheets,
		DetectedPeriods:  result.DetectedPeriods,
		TotalRecords:     result.TotalRecords,
		Headers:          result.Headers,
		Blocks:           result.Blocks,
		Diagnostics:      result.Diagnostics,
		DurationMS:       elapsed.Milliseconds(),
	}
	log.Info("import completed",
		zap.String("sheet", report.SheetName),
		zap.Int("records", report.TotalRecords),
		zap.Strings("periods", report.DetectedPeriods),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.Duration("duration", elapsed),
	)
	c.sendProgress(opts, ProgressEvent{Type: "saved", Message: "导入完成", Data: report})
	return report, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
