package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SentinelLabel 表头哨兵列：出现该标签的行即为一个员工考评块的表头
const SentinelLabel = "所在考评表"

// 动态评价人字段前缀（仅在序列化边界展开）
const (
	PeerResultPrefix = "peerEvaluationResult_"
	PeerRemarkPrefix = "peerEvaluationRemark_"
)

// Role 固定列语义角色
type Role string

const (
	RoleEmployeeName               Role = "employeeName"
	RoleEmployeeID                 Role = "employeeId"
	RoleDepartment                 Role = "department"
	RolePosition                   Role = "position"
	RoleEvaluationForm             Role = "evaluationForm"
	RoleEvaluationPeriod           Role = "evaluationPeriod"
	RoleLevel                      Role = "level"
	RoleCurrentNode                Role = "currentNode"
	RoleDimensionName              Role = "dimensionName"
	RoleIndicatorName              Role = "indicatorName"
	RoleAssessmentStandard         Role = "assessmentStandard"
	RoleWeight                     Role = "weight"
	RoleSelfEvaluationResult       Role = "selfEvaluationResult"
	RoleSelfEvaluationRemark       Role = "selfEvaluationRemark"
	RoleSupervisorEvaluationResult Role = "supervisorEvaluationResult"
	RoleSupervisorEvaluationRemark Role = "supervisorEvaluationRemark"
	RolePerformanceResult          Role = "performanceResult"
	RoleComments                   Role = "comments"
	RoleEvaluationDate             Role = "evaluationDate"
)

// HeaderBlock 单个员工考评块的表头
type HeaderBlock struct {
	HeaderRowIndex int      `json:"headerRowIndex"` // 0 起始的行号
	Labels         []string `json:"labels"`
	Roster         []string `json:"roster"` // 已排序、去重的评价人列表
}

// Segment 表头块及其数据行范围 [DataStart, DataEnd)
type Segment struct {
	Header    HeaderBlock `json:"header"`
	DataStart int         `json:"dataStart"`
	DataEnd   int         `json:"dataEnd"`
	Fallback  bool        `json:"fallback"` // 未找到哨兵表头，整表视为一个块
}

// ReviewerColumns 评价人对应的列；Remark 为 -1 表示无说明列
type ReviewerColumns struct {
	Result int `json:"result"`
	Remark int `json:"remark"`
}

// HasRemark 是否存在说明列
func (c ReviewerColumns) HasRemark() bool {
	return c.Remark >= 0
}

// ReviewerScore 单个评价人在某指标行上的评分与说明
type ReviewerScore struct {
	Result string `json:"result"`
	Remark string `json:"remark,omitempty"`
}

// RecordFields 指标记录的固定字段
type RecordFields struct {
	ID        string `json:"id"`
	SheetName string `json:"sheetName,omitempty"`
	SourceRow int    `json:"sourceRow,omitempty"`

	EmployeeName     string `json:"employeeName"`
	EmployeeID       string `json:"employeeId"`
	Department       string `json:"department"`
	Position         string `json:"position"`
	EvaluationForm   string `json:"evaluationForm"`
	EvaluationPeriod string `json:"evaluationPeriod"`
	Level            string `json:"level"`
	CurrentNode      string `json:"currentNode"`

	DimensionName      string   `json:"dimensionName"`
	IndicatorName      string   `json:"indicatorName"`
	AssessmentStandard string   `json:"assessmentStandard"`
	Weight             *float64 `json:"weight"`

	SelfEvaluationResult       string  `json:"selfEvaluationResult"`
	SelfEvaluationRemark       string  `json:"selfEvaluationRemark"`
	SupervisorEvaluationResult string  `json:"supervisorEvaluationResult"`
	SupervisorEvaluationRemark string  `json:"supervisorEvaluationRemark"`
	PerformanceResult          string  `json:"performanceResult"`
	Comments                   string  `json:"comments"`
	EvaluationDate             *string `json:"evaluationDate"` // YYYY-MM-DD
}

// IndicatorRecord 归一化后的员工指标记录
type IndicatorRecord struct {
	RecordFields

	// Reviewers 评价人 -> 评分；只包含本块名单内、且该行评分非空的评价人
	Reviewers map[string]ReviewerScore `json:"-"`
}

// ReviewerNames 返回已排序的评价人列表
func (r *IndicatorRecord) ReviewerNames() []string {
	names := make([]string, 0, len(r.Reviewers))
	for name := range r.Reviewers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON 在序列化边界把评价人展开为 peerEvaluationResult_<name>/peerEvaluationRemark_<name>
func (r IndicatorRecord) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(r.RecordFields)
	if err != nil {
		return nil, err
	}
	if len(r.Reviewers) == 0 {
		return base, nil
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for name, score := range r.Reviewers {
		result, err := json.Marshal(score.Result)
		if err != nil {
			return nil, err
		}
		fields[PeerResultPrefix+name] = result
		if score.Remark != "" {
			remark, err := json.Marshal(score.Remark)
			if err != nil {
				return nil, err
			}
			fields[PeerRemarkPrefix+name] = remark
		}
	}
	return json.Marshal(fields)
}

// UnmarshalJSON 还原展开后的评价人字段
func (r *IndicatorRecord) UnmarshalJSON(data []byte) error {
	var fields RecordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	reviewers := make(map[string]ReviewerScore)
	remarks := make(map[string]string)
	for key, value := range raw {
		switch {
		case strings.HasPrefix(key, PeerResultPrefix):
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			name := strings.TrimPrefix(key, PeerResultPrefix)
			score := reviewers[name]
			score.Result = s
			reviewers[name] = score
		case strings.HasPrefix(key, PeerRemarkPrefix):
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			remarks[strings.TrimPrefix(key, PeerRemarkPrefix)] = s
		}
	}
	for name, remark := range remarks {
		score, ok := reviewers[name]
		if !ok {
			// 没有评分的说明不构成评价
			continue
		}
		score.Remark = remark
		reviewers[name] = score
	}

	r.RecordFields = fields
	r.Reviewers = nil
	if len(reviewers) > 0 {
		r.Reviewers = reviewers
	}
	return nil
}

// Diagnostic 解析过程中的可恢复问题（不会中断导入）
type Diagnostic struct {
	Row     int    `json:"row,omitempty"`    // 1 起始的 Excel 行号；0 表示与行无关
	Column  int    `json:"column,omitempty"` // 1 起始的列号；0 表示与列无关
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Row > 0 && d.Column > 0:
		return fmt.Sprintf("第%d行第%d列: %s", d.Row, d.Column, d.Message)
	case d.Row > 0:
		return fmt.Sprintf("第%d行: %s", d.Row, d.Message)
	case d.Column > 0:
		return fmt.Sprintf("第%d列: %s", d.Column, d.Message)
	default:
		return d.Message
	}
}

// BlockSummary 表头块概要
type BlockSummary struct {
	HeaderRow int      `json:"headerRow"` // 1 起始的 Excel 行号
	Reviewers []string `json:"reviewers"`
	Records   int      `json:"records"`
	Fallback  bool     `json:"fallback,omitempty"`
}

// Result 单个工作表的解析结果
type Result struct {
	OriginalFilename string            `json:"originalFilename"`
	SheetName        string            `json:"sheetName,omitempty"`
	DetectedPeriods  []string          `json:"detectedPeriods"`
	TotalRecords     int               `json:"totalRecords"`
	Headers          []string          `json:"headers"`
	Blocks           []BlockSummary    `json:"blocks"`
	Records          []IndicatorRecord `json:"records"`
	Diagnostics      []Diagnostic      `json:"diagnostics,omitempty"`
}
