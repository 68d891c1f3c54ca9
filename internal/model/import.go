package model

import (
	"errors"
	"strings"
	"time"

	"perfreview/internal/parser"
)

// ErrInvalidPatch 修改请求不合法
var ErrInvalidPatch = errors.New("invalid patch")

// ImportDocument 一次导入的持久化文档
type ImportDocument struct {
	ImportID         string                   `json:"importId"`
	ImportedAt       time.Time                `json:"importedAt"`
	OriginalFilename string                   `json:"originalFilename"`
	SheetName        string                   `json:"sheetName"`
	DetectedPeriods  []string                 `json:"detectedPeriods"`
	TotalRecords     int                      `json:"totalRecords"`
	Headers          []string                 `json:"headers"`
	Records          []parser.IndicatorRecord `json:"records"`
}

// NewImportDocument 由解析结果构造导入文档
func NewImportDocument(importID string, importedAt time.Time, result *parser.Result) *ImportDocument {
	return &ImportDocument{
		ImportID:         importID,
		ImportedAt:       importedAt.UTC(),
		OriginalFilename: result.OriginalFilename,
		SheetName:        result.SheetName,
		DetectedPeriods:  result.DetectedPeriods,
		TotalRecords:     result.TotalRecords,
		Headers:          result.Headers,
		Records:          result.Records,
	}
}

// HistoryEntry 导入历史条目（最新在前）
type HistoryEntry struct {
	ImportID         string    `json:"importId"`
	ImportedAt       time.Time `json:"importedAt"`
	OriginalFilename string    `json:"originalFilename"`
	SheetName        string    `json:"sheetName"`
	DetectedPeriods  []string  `json:"detectedPeriods"`
	TotalRecords     int       `json:"totalRecords"`
	Document         string    `json:"document,omitempty"` // JSON 存储下的文档文件名
}

// Entry 返回文档对应的历史条目
func (d *ImportDocument) Entry() HistoryEntry {
	return HistoryEntry{
		ImportID:         d.ImportID,
		ImportedAt:       d.ImportedAt,
		OriginalFilename: d.OriginalFilename,
		SheetName:        d.SheetName,
		DetectedPeriods:  d.DetectedPeriods,
		TotalRecords:     d.TotalRecords,
	}
}

// RecordPatch 单条指标记录的修改；nil 字段保持不变
type RecordPatch struct {
	EmployeeName     *string `json:"employeeName,omitempty"`
	EmployeeID       *string `json:"employeeId,omitempty"`
	Department       *string `json:"department,omitempty"`
	Position         *string `json:"position,omitempty"`
	EvaluationForm   *string `json:"evaluationForm,omitempty"`
	EvaluationPeriod *string `json:"evaluationPeriod,omitempty"`
	Level            *string `json:"level,omitempty"`
	CurrentNode      *string `json:"currentNode,omitempty"`

	DimensionName      *string  `json:"dimensionName,omitempty"`
	IndicatorName      *string  `json:"indicatorName,omitempty"`
	AssessmentStandard *string  `json:"assessmentStandard,omitempty"`
	Weight             *float64 `json:"weight,omitempty"`

	SelfEvaluationResult       *string `json:"selfEvaluationResult,omitempty"`
	SelfEvaluationRemark       *string `json:"selfEvaluationRemark,omitempty"`
	SupervisorEvaluationResult *string `json:"supervisorEvaluationResult,omitempty"`
	SupervisorEvaluationRemark *string `json:"supervisorEvaluationRemark,omitempty"`
	PerformanceResult          *string `json:"performanceResult,omitempty"`
	Comments                   *string `json:"comments,omitempty"`
	EvaluationDate             *string `json:"evaluationDate,omitempty"`

	// Reviewers 评分为空表示删除该评价人
	Reviewers map[string]parser.ReviewerScore `json:"reviewers,omitempty"`
}

// Validate 校验修改内容
func (p *RecordPatch) Validate() error {
	if p.EmployeeName != nil && strings.TrimSpace(*p.EmployeeName) == "" {
		return errors.Join(ErrInvalidPatch, errors.New("employeeName cannot be empty"))
	}
	if p.IndicatorName != nil && strings.TrimSpace(*p.IndicatorName) == "" {
		return errors.Join(ErrInvalidPatch, errors.New("indicatorName cannot be empty"))
	}
	if p.EvaluationDate != nil && *p.EvaluationDate != "" && parser.ParseDate(*p.EvaluationDate) == nil {
		return errors.Join(ErrInvalidPatch, errors.New("evaluationDate is not a date"))
	}
	for name := range p.Reviewers {
		if strings.TrimSpace(name) == "" {
			return errors.Join(ErrInvalidPatch, errors.New("reviewer name cannot be empty"))
		}
	}
	return nil
}

// Apply 将修改应用到记录
func (p *RecordPatch) Apply(rec *parser.IndicatorRecord) {
	setString(&rec.EmployeeName, p.EmployeeName)
	setString(&rec.EmployeeID, p.EmployeeID)
	setString(&rec.Department, p.Department)
	setString(&rec.Position, p.Position)
	setString(&rec.EvaluationForm, p.EvaluationForm)
	setString(&rec.EvaluationPeriod, p.EvaluationPeriod)
	setString(&rec.Level, p.Level)
	setString(&rec.CurrentNode, p.CurrentNode)
	setString(&rec.DimensionName, p.DimensionName)
	setString(&rec.IndicatorName, p.IndicatorName)
	setString(&rec.AssessmentStandard, p.AssessmentStandard)
	setString(&rec.SelfEvaluationResult, p.SelfEvaluationResult)
	setString(&rec.SelfEvaluationRemark, p.SelfEvaluationRemark)
	setString(&rec.SupervisorEvaluationResult, p.SupervisorEvaluationResult)
	setString(&rec.SupervisorEvaluationRemark, p.SupervisorEvaluationRemark)
	setString(&rec.PerformanceResult, p.PerformanceResult)
	setString(&rec.Comments, p.Comments)

	if p.Weight != nil {
		w := *p.Weight
		rec.Weight = &w
	}
	if p.EvaluationDate != nil {
		rec.EvaluationDate = parser.ParseDate(*p.EvaluationDate)
	}

	for name, score := range p.Reviewers {
		name = strings.TrimSpace(name)
		if strings.TrimSpace(score.Result) == "" {
			delete(rec.Reviewers, name)
			continue
		}
		if rec.Reviewers == nil {
			rec.Reviewers = make(map[string]parser.ReviewerScore)
		}
		rec.Reviewers[name] = score
	}
	if len(rec.Reviewers) == 0 {
		rec.Reviewers = nil
	}
}

// EmployeePatch 对某员工全部记录的身份字段修改
type EmployeePatch struct {
	EmployeeName   *string `json:"employeeName,omitempty"`
	EmployeeID     *string `json:"employeeId,omitempty"`
	Department     *string `json:"department,omitempty"`
	Position       *string `json:"position,omitempty"`
	EvaluationForm *string `json:"evaluationForm,omitempty"`
	Level          *string `json:"level,omitempty"`
	CurrentNode    *string `json:"currentNode,omitempty"`
}

// Validate 校验修改内容
func (p *EmployeePatch) Validate() error {
	if p.EmployeeName != nil && strings.TrimSpace(*p.EmployeeName) == "" {
		return errors.Join(ErrInvalidPatch, errors.New("employeeName cannot be empty"))
	}
	return nil
}

// Apply 将修改应用到记录
func (p *EmployeePatch) Apply(rec *parser.IndicatorRecord) {
	setString(&rec.EmployeeName, p.EmployeeName)
	setString(&rec.EmployeeID, p.EmployeeID)
	setString(&rec.Department, p.Department)
	setString(&rec.Position, p.Position)
	setString(&rec.EvaluationForm, p.EvaluationForm)
	setString(&rec.Level, p.Level)
	setString(&rec.CurrentNode, p.CurrentNode)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// StoreStatus 存储概况（/api/status）
type StoreStatus struct {
	Driver       string    `json:"driver"`
	Imports      int       `json:"imports"`
	Records      int       `json:"records"`
	Employees    int       `json:"employees"`
	LastImportAt time.Time `json:"lastImportAt"`
}
