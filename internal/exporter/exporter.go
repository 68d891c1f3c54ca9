package exporter

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"perfreview/internal/parser"
)

// SheetName 导出工作表名
const SheetName = "绩效记录"

// column 固定导出列；表头沿用导入时可识别的列名，导出文件可以再次导入
type column struct {
	title string
	width float64
	value func(rec *parser.IndicatorRecord) interface{}
}

var fixedColumns = []column{
	{"姓名", 12, func(r *parser.IndicatorRecord) interface{} { return r.EmployeeName }},
	{"工号", 12, func(r *parser.IndicatorRecord) interface{} { return r.EmployeeID }},
	{"部门", 16, func(r *parser.IndicatorRecord) interface{} { return r.Department }},
	{"岗位", 14, func(r *parser.IndicatorRecord) interface{} { return r.Position }},
	{parser.SentinelLabel, 20, func(r *parser.IndicatorRecord) interface{} { return r.EvaluationForm }},
	{"考评周期", 16, func(r *parser.IndicatorRecord) interface{} { return r.EvaluationPeriod }},
	{"职级", 10, func(r *parser.IndicatorRecord) interface{} { return r.Level }},
	{"当前节点", 12, func(r *parser.IndicatorRecord) interface{} { return r.CurrentNode }},
	{"维度名称", 14, func(r *parser.IndicatorRecord) interface{} { return r.DimensionName }},
	{"指标名称", 24, func(r *parser.IndicatorRecord) interface{} { return r.IndicatorName }},
	{"考核标准", 40, func(r *parser.IndicatorRecord) interface{} { return r.AssessmentStandard }},
	{"权重", 10, func(r *parser.IndicatorRecord) interface{} { return FormatWeight(r.Weight) }},
	{"自评-（100.0%）", 12, func(r *parser.IndicatorRecord) interface{} { return r.SelfEvaluationResult }},
	{"自评说明", 30, func(r *parser.IndicatorRecord) interface{} { return r.SelfEvaluationRemark }},
	{"上级评分-（100.0%）", 12, func(r *parser.IndicatorRecord) interface{} { return r.SupervisorEvaluationResult }},
	{"上级评分说明", 30, func(r *parser.IndicatorRecord) interface{} { return r.SupervisorEvaluationRemark }},
	{"绩效结果", 10, func(r *parser.IndicatorRecord) interface{} { return r.PerformanceResult }},
	{"评语", 30, func(r *parser.IndicatorRecord) interface{} { return r.Comments }},
	{"考评日期", 12, func(r *parser.IndicatorRecord) interface{} {
		if r.EvaluationDate == nil {
			return ""
		}
		return *r.EvaluationDate
	}},
}

// FormatWeight 权重输出为百分比文本，nil 为空
func FormatWeight(w *float64) string {
	if w == nil {
		return ""
	}
	pct := math.Round(*w*10000) / 100
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

// ReviewerTitles 评价人评分列与说明列的表头
func ReviewerTitles(name string) (result, remark string) {
	return fmt.Sprintf("360°评分-%s", name), fmt.Sprintf("360°评分-%s评分说明", name)
}

// reviewerUnion 全部记录中出现过的评价人（排序）
func reviewerUnion(records []parser.IndicatorRecord) []string {
	seen := make(map[string]struct{})
	for i := range records {
		for name := range records[i].Reviewers {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportRecords 将记录写入单工作表 .xlsx：固定列在前，每个评价人一组评分/说明列
func ExportRecords(records []parser.IndicatorRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	reviewers := reviewerUnion(records)
	header := make([]interface{}, 0, len(fixedColumns)+2*len(reviewers))
	for _, col := range fixedColumns {
		header = append(header, col.title)
	}
	for _, name := range reviewers {
		result, remark := ReviewerTitles(name)
		header = append(header, result, remark)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i := range records {
		rec := &records[i]
		row := make([]interface{}, 0, len(header))
		for _, col := range fixedColumns {
			row = append(row, col.value(rec))
		}
		for _, name := range reviewers {
			score := rec.Reviewers[name]
			row = append(row, score.Result, score.Remark)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := styleSheet(f, len(header), len(records)); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func styleSheet(f *excelize.File, columns, rows int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return err
	}

	last, err := excelize.ColumnNumberToName(columns)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last+"1", headerStyle); err != nil {
		return err
	}

	for i := 1; i <= columns; i++ {
		name, err := excelize.ColumnNumberToName(i)
		if err != nil {
			return err
		}
		width := 16.0
		if i <= len(fixedColumns) {
			width = fixedColumns[i-1].width
		}
		if err := f.SetColWidth(SheetName, name, name, width); err != nil {
			return err
		}
	}

	if rows > 0 {
		return f.SetPanes(SheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}
