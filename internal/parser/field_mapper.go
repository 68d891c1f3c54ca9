package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// reReviewerPrefix 360 评价列前缀，兼容 "360°评分-" / "360度评分－" 等写法
var reReviewerPrefix = regexp.MustCompile(`^360\s*[°º度]?\s*评分\s*[-－—–]\s*`)

// ReviewerLabel 从列名中解析出的评价人列信息
type ReviewerLabel struct {
	Name   string
	Remark bool // true 为评分说明列，false 为评分列
}

// IsReviewerLabel 列名是否带 360 评价前缀（无论能否解析出姓名）
func IsReviewerLabel(label string) bool {
	return reReviewerPrefix.MatchString(cleanLabel(label))
}

// ExtractReviewer 解析 360 评价列名；评分列与说明列共用同一套姓名提取规则。
//
//	"360°评分-刘志润（0.0%）（0.0%）"     -> {刘志润, false}
//	"360°评分-刘志润（0.0%）评分说明"     -> {刘志润, true}
//	"360°评分-李四评分说明"              -> {李四, true}
//
// 姓名取前缀之后、第一个左括号（全角或半角）之前的部分并去除首尾空白；
// 前缀不匹配或姓名为空时返回 false。
func ExtractReviewer(label string) (ReviewerLabel, bool) {
	clean := cleanLabel(label)
	loc := reReviewerPrefix.FindStringIndex(clean)
	if loc == nil {
		return ReviewerLabel{}, false
	}
	rest := clean[loc[1]:]

	remark := false
	if i := strings.Index(rest, "评分说明"); i >= 0 {
		rest = rest[:i]
		remark = true
	} else if strings.HasSuffix(rest, "说明") {
		rest = strings.TrimSuffix(rest, "说明")
		remark = true
	}

	if i := strings.IndexAny(rest, "(（"); i >= 0 {
		rest = rest[:i]
	}
	name := strings.TrimSpace(rest)
	if name == "" {
		return ReviewerLabel{}, false
	}
	return ReviewerLabel{Name: name, Remark: remark}, true
}

// roleRule 固定列匹配规则，按顺序匹配，先命中者生效
type roleRule struct {
	role  Role
	match func(col string) bool
}

// fixedRoleRules 固定角色规则表（col 已经过 NormalizeColumnName）。
// 评价类规则排在身份类规则之前，避免 "上级评分-部门经理（100.0%）" 被识别为部门列。
var fixedRoleRules = []roleRule{
	{RoleSelfEvaluationRemark, func(col string) bool {
		return strings.HasPrefix(col, "自评") && strings.Contains(col, "说明")
	}},
	{RoleSelfEvaluationResult, func(col string) bool {
		return HasAnyPrefix(col, "自评-", "自评－") && !strings.Contains(col, "说明")
	}},
	{RoleSupervisorEvaluationRemark, func(col string) bool {
		return strings.HasPrefix(col, "上级评分") && strings.Contains(col, "说明")
	}},
	{RoleSupervisorEvaluationResult, func(col string) bool {
		return HasAnyPrefix(col, "上级评分-", "上级评分－") &&
			ContainsAny(strings.ReplaceAll(col, "％", "%"), "100.0%", "100%")
	}},
	{RolePerformanceResult, func(col string) bool {
		return col == "绩效结果"
	}},
	{RoleEvaluationForm, func(col string) bool {
		return col == SentinelLabel || strings.HasSuffix(col, "考评表")
	}},
	{RoleEmployeeID, func(col string) bool {
		return ContainsAny(col, "工号", "员工编号", "员工编码", "员工ID")
	}},
	{RoleEmployeeName, func(col string) bool {
		return strings.Contains(col, "姓名") || EqualsAny(col, "被考评人", "员工")
	}},
	{RoleDepartment, func(col string) bool {
		return strings.Contains(col, "部门")
	}},
	{RolePosition, func(col string) bool {
		return ContainsAny(col, "岗位", "职位")
	}},
	{RoleEvaluationPeriod, func(col string) bool {
		return ContainsAny(col, "考评周期", "考核周期", "评估周期") || col == "周期"
	}},
	{RoleLevel, func(col string) bool {
		return ContainsAny(col, "职级", "级别")
	}},
	{RoleCurrentNode, func(col string) bool {
		return ContainsAny(col, "当前节点") || col == "节点"
	}},
	{RoleDimensionName, func(col string) bool {
		return EqualsAny(col, "维度名称", "维度", "考核维度")
	}},
	{RoleIndicatorName, func(col string) bool {
		return EqualsAny(col, "指标名称", "指标", "考核指标")
	}},
	{RoleAssessmentStandard, func(col string) bool {
		return ContainsAny(col, "考核标准", "评分标准", "评价标准", "衡量标准")
	}},
	{RoleWeight, func(col string) bool {
		return strings.Contains(col, "权重")
	}},
	{RoleComments, func(col string) bool {
		return ContainsAny(col, "评语", "备注", "综合评价")
	}},
	{RoleEvaluationDate, func(col string) bool {
		return strings.Contains(col, "日期")
	}},
}

// classifyFixed 返回列名命中的第一个固定角色。
// 自评/上级评分开头的列只能命中评价类角色，例如非 100% 权重的上级评分列不映射。
func classifyFixed(col string) (Role, bool) {
	evalOnly := HasAnyPrefix(col, "自评", "上级评分")
	for _, rule := range fixedRoleRules {
		if evalOnly && !isEvaluationRole(rule.role) {
			break
		}
		if rule.match(col) {
			return rule.role, true
		}
	}
	return "", false
}

func isEvaluationRole(role Role) bool {
	switch role {
	case RoleSelfEvaluationResult, RoleSelfEvaluationRemark,
		RoleSupervisorEvaluationResult, RoleSupervisorEvaluationRemark:
		return true
	}
	return false
}

// ColumnMap 单个表头块的列映射，构建后只读
type ColumnMap struct {
	fixed     map[Role]int
	reviewers map[string]ReviewerColumns
	roster    []string
}

// Column 返回固定角色所在列
func (m *ColumnMap) Column(role Role) (int, bool) {
	idx, ok := m.fixed[role]
	return idx, ok
}

// Reviewer 返回评价人对应的评分/说明列
func (m *ColumnMap) Reviewer(name string) (ReviewerColumns, bool) {
	cols, ok := m.reviewers[name]
	return cols, ok
}

// Roster 返回本块评价人名单副本（已排序）
func (m *ColumnMap) Roster() []string {
	out := make([]string, len(m.roster))
	copy(out, m.roster)
	return out
}

// Roles 返回已映射的固定角色（按列顺序）
func (m *ColumnMap) Roles() []Role {
	roles := make([]Role, 0, len(m.fixed))
	for role := range m.fixed {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		return m.fixed[roles[i]] < m.fixed[roles[j]]
	})
	return roles
}

// MapColumns 为一个表头块构建列映射。
// 同一固定角色命中多列时取第一列；无法解析姓名的 360 列直接丢弃；
// 这些情况以 Diagnostic 形式返回，不视为错误。
func MapColumns(labels []string) (*ColumnMap, []Diagnostic) {
	m := &ColumnMap{
		fixed:     make(map[Role]int),
		reviewers: make(map[string]ReviewerColumns),
	}
	var diags []Diagnostic
	remarks := make(map[string]int)

	for idx, label := range labels {
		col := NormalizeColumnName(label)
		if col == "" {
			continue
		}

		if IsReviewerLabel(label) {
			rv, ok := ExtractReviewer(label)
			if !ok {
				diags = append(diags, Diagnostic{
					Column:  idx + 1,
					Message: fmt.Sprintf("无法从列名「%s」解析评价人，已忽略", col),
				})
				continue
			}
			if rv.Remark {
				if first, dup := remarks[rv.Name]; dup {
					diags = append(diags, Diagnostic{
						Column:  idx + 1,
						Message: fmt.Sprintf("评价人「%s」的说明列重复（首列为第%d列），已忽略", rv.Name, first+1),
					})
					continue
				}
				remarks[rv.Name] = idx
				continue
			}
			if existing, dup := m.reviewers[rv.Name]; dup {
				diags = append(diags, Diagnostic{
					Column:  idx + 1,
					Message: fmt.Sprintf("评价人「%s」的评分列重复（首列为第%d列），已忽略", rv.Name, existing.Result+1),
				})
				continue
			}
			m.reviewers[rv.Name] = ReviewerColumns{Result: idx, Remark: -1}
			continue
		}

		role, ok := classifyFixed(col)
		if !ok {
			continue
		}
		if first, dup := m.fixed[role]; dup {
			diags = append(diags, Diagnostic{
				Column:  idx + 1,
				Message: fmt.Sprintf("列「%s」与第%d列同为 %s，已忽略", col, first+1, role),
			})
			continue
		}
		m.fixed[role] = idx
	}

	// 说明列只与同一块内同名评价人的评分列配对
	for name, idx := range remarks {
		cols, ok := m.reviewers[name]
		if !ok {
			diags = append(diags, Diagnostic{
				Column:  idx + 1,
				Message: fmt.Sprintf("评价人「%s」只有说明列没有评分列，已忽略", name),
			})
			continue
		}
		cols.Remark = idx
		m.reviewers[name] = cols
	}

	m.roster = make([]string, 0, len(m.reviewers))
	for name := range m.reviewers {
		m.roster = append(m.roster, name)
	}
	sort.Strings(m.roster)

	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Column < diags[j].Column
	})
	return m, diags
}

// reviewerRoster 从表头中收集评分列的评价人（排序去重）
func reviewerRoster(labels []string) []string {
	seen := make(map[string]struct{})
	roster := make([]string, 0)
	for _, label := range labels {
		rv, ok := ExtractReviewer(label)
		if !ok || rv.Remark {
			continue
		}
		if _, dup := seen[rv.Name]; dup {
			continue
		}
		seen[rv.Name] = struct{}{}
		roster = append(roster, rv.Name)
	}
	sort.Strings(roster)
	return roster
}
