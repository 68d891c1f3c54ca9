package parser

import (
	"fmt"
	"strings"
)

// summaryMarkers 指标名包含这些词的行是汇总行，不产生记录
var summaryMarkers = []string{"总分", "总评", "小计"}

// IsSummaryIndicator 是否为总分/总评/小计行
func IsSummaryIndicator(name string) bool {
	return ContainsAny(name, summaryMarkers...)
}

// BuildOptions 记录构建选项
type BuildOptions struct {
	SheetName  string
	PeriodHint string // 行内无考评周期时使用（通常来自文件名）
	IDPrefix   string
}

// employeeContext 当前员工上下文：姓名非空的行开启新上下文，后续空姓名行沿用
type employeeContext struct {
	name           string
	id             string
	department     string
	position       string
	evaluationForm string
	period         string
	level          string
	currentNode    string
	dimension      string
}

// recordBuilder 单个块的记录构建过程
type recordBuilder struct {
	block   HeaderBlock
	columns *ColumnMap
	opts    BuildOptions
	roster  []string

	current *employeeContext
	records []IndicatorRecord
	diags   []Diagnostic
}

// BuildRecords 为一个表头块的数据行构建指标记录。
// dataRows 紧随表头行之后；坏行只记录 Diagnostic 并跳过，不会中断整表。
func BuildRecords(block HeaderBlock, columns *ColumnMap, dataRows [][]string, opts BuildOptions) ([]IndicatorRecord, []Diagnostic) {
	if opts.IDPrefix == "" {
		opts.IDPrefix = "row"
	}
	b := &recordBuilder{
		block:   block,
		columns: columns,
		opts:    opts,
		roster:  columns.Roster(),
		records: make([]IndicatorRecord, 0, len(dataRows)),
	}
	for i, row := range dataRows {
		b.buildRow(block.HeaderRowIndex+2+i, row)
	}
	return b.records, b.diags
}

func (b *recordBuilder) cell(row []string, role Role) string {
	idx, ok := b.columns.Column(role)
	if !ok {
		return ""
	}
	return getCell(row, idx)
}

func (b *recordBuilder) note(rowNo, col int, format string, args ...any) {
	b.diags = append(b.diags, Diagnostic{Row: rowNo, Column: col, Message: fmt.Sprintf(format, args...)})
}

// buildRow 处理单行；rowNo 为 1 起始的 Excel 行号
func (b *recordBuilder) buildRow(rowNo int, row []string) {
	if isBlankRow(row) {
		return
	}

	if extra := b.overflowColumn(row); extra > 0 {
		b.note(rowNo, extra, "数据超出表头列范围（表头共%d列），已跳过该行", len(b.block.Labels))
		return
	}

	name := b.cell(row, RoleEmployeeName)
	if name == SentinelLabel || b.isRepeatedHeader(row) {
		return
	}
	if name != "" {
		b.startEmployee(name, row)
	}

	indicator := b.cell(row, RoleIndicatorName)
	if indicator == "" || IsSummaryIndicator(indicator) {
		return
	}
	if b.current == nil {
		b.note(rowNo, 0, "指标「%s」之前没有出现员工姓名，已跳过", indicator)
		return
	}

	dimension := b.cell(row, RoleDimensionName)
	if dimension == "" {
		dimension = b.current.dimension
	} else {
		b.current.dimension = dimension
	}

	rec := IndicatorRecord{
		RecordFields: RecordFields{
			ID:        fmt.Sprintf("%s-%d", b.opts.IDPrefix, rowNo),
			SheetName: b.opts.SheetName,
			SourceRow: rowNo,

			EmployeeName:     b.current.name,
			EmployeeID:       b.inherit(row, RoleEmployeeID, b.current.id),
			Department:       b.inherit(row, RoleDepartment, b.current.department),
			Position:         b.inherit(row, RolePosition, b.current.position),
			EvaluationForm:   b.inherit(row, RoleEvaluationForm, b.current.evaluationForm),
			EvaluationPeriod: b.inherit(row, RoleEvaluationPeriod, b.current.period),
			Level:            b.inherit(row, RoleLevel, b.current.level),
			CurrentNode:      b.inherit(row, RoleCurrentNode, b.current.currentNode),

			DimensionName:      dimension,
			IndicatorName:      indicator,
			AssessmentStandard: b.cell(row, RoleAssessmentStandard),

			SelfEvaluationResult:       b.cell(row, RoleSelfEvaluationResult),
			SelfEvaluationRemark:       b.cell(row, RoleSelfEvaluationRemark),
			SupervisorEvaluationResult: b.cell(row, RoleSupervisorEvaluationResult),
			SupervisorEvaluationRemark: b.cell(row, RoleSupervisorEvaluationRemark),
			PerformanceResult:          b.cell(row, RolePerformanceResult),
			Comments:                   b.cell(row, RoleComments),
		},
	}
	if rec.EvaluationPeriod == "" {
		rec.EvaluationPeriod = b.opts.PeriodHint
	}

	if raw := b.cell(row, RoleWeight); raw != "" {
		rec.Weight = ParseWeight(raw)
		if rec.Weight == nil {
			col, _ := b.columns.Column(RoleWeight)
			b.note(rowNo, col+1, "权重「%s」无法解析，已置空", raw)
		}
	}
	if raw := b.cell(row, RoleEvaluationDate); raw != "" {
		rec.EvaluationDate = ParseDate(raw)
		if rec.EvaluationDate == nil {
			col, _ := b.columns.Column(RoleEvaluationDate)
			b.note(rowNo, col+1, "日期「%s」无法解析，已置空", raw)
		}
	}

	for _, reviewer := range b.roster {
		cols, _ := b.columns.Reviewer(reviewer)
		result := getCell(row, cols.Result)
		if result == "" {
			continue
		}
		score := ReviewerScore{Result: result}
		if cols.HasRemark() {
			score.Remark = getCell(row, cols.Remark)
		}
		if rec.Reviewers == nil {
			rec.Reviewers = make(map[string]ReviewerScore)
		}
		rec.Reviewers[reviewer] = score
	}

	b.records = append(b.records, rec)
}

func (b *recordBuilder) startEmployee(name string, row []string) {
	b.current = &employeeContext{
		name:           name,
		id:             b.cell(row, RoleEmployeeID),
		department:     b.cell(row, RoleDepartment),
		position:       b.cell(row, RolePosition),
		evaluationForm: b.cell(row, RoleEvaluationForm),
		period:         b.cell(row, RoleEvaluationPeriod),
		level:          b.cell(row, RoleLevel),
		currentNode:    b.cell(row, RoleCurrentNode),
	}
}

// inherit 行内有值用行内值，否则沿用员工上下文
func (b *recordBuilder) inherit(row []string, role Role, fallback string) string {
	if v := b.cell(row, role); v != "" {
		return v
	}
	return fallback
}

// overflowColumn 返回超出表头宽度的第一个非空列（1 起始），没有则为 0
func (b *recordBuilder) overflowColumn(row []string) int {
	for i := len(b.block.Labels); i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return i + 1
		}
	}
	return 0
}

// isRepeatedHeader 姓名与指标单元格同时等于表头标签的行是重复表头
func (b *recordBuilder) isRepeatedHeader(row []string) bool {
	nameIdx, okName := b.columns.Column(RoleEmployeeName)
	indIdx, okInd := b.columns.Column(RoleIndicatorName)
	if !okName || !okInd {
		return false
	}
	return getCell(row, nameIdx) == getCell(b.block.Labels, nameIdx) &&
		getCell(row, indIdx) == getCell(b.block.Labels, indIdx)
}
