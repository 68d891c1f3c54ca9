package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var builderHeader = []string{
	"姓名", "部门", "所在考评表", "维度名称", "指标名称", "权重",
	"360°评分-李四（80%）", "360°评分-李四评分说明", "360°评分-王五（20%）", "考评日期",
}

func buildFor(t *testing.T, labels []string, data [][]string, opts BuildOptions) ([]IndicatorRecord, []Diagnostic) {
	t.Helper()
	block := newHeaderBlock(0, labels)
	columns, diags := MapColumns(block.Labels)
	require.Empty(t, diags)
	return BuildRecords(block, columns, data, opts)
}

func TestBuildRecords_CarryForwardEmployee(t *testing.T) {
	t.Parallel()

	records, diags := buildFor(t, builderHeader, [][]string{
		{"张三", "技术部", "研发考评表", "业绩", "A", "40%"},
		{"", "", "", "", "B", "60"},
	}, BuildOptions{})
	assert.Empty(t, diags)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.Equal(t, "张三", rec.EmployeeName)
		assert.Equal(t, "技术部", rec.Department)
		assert.Equal(t, "研发考评表", rec.EvaluationForm)
		assert.Equal(t, "业绩", rec.DimensionName)
	}
	assert.Equal(t, "A", records[0].IndicatorName)
	assert.Equal(t, "B", records[1].IndicatorName)
	require.NotNil(t, records[1].Weight)
	assert.InDelta(t, 0.6, *records[1].Weight, 1e-9)
}

func TestBuildRecords_NewNameStartsNewEmployee(t *testing.T) {
	t.Parallel()

	records, _ := buildFor(t, builderHeader, [][]string{
		{"张三", "技术部", "", "业绩", "A"},
		{"赵六", "", "", "", "B"},
		{"", "", "", "", "C"},
	}, BuildOptions{})
	require.Len(t, records, 3)
	assert.Equal(t, "赵六", records[1].EmployeeName)
	assert.Empty(t, records[1].Department, "department must not leak across employees")
	assert.Empty(t, records[1].DimensionName)
	assert.Equal(t, "赵六", records[2].EmployeeName)
}

func TestBuildRecords_SkipsSummaryRows(t *testing.T) {
	t.Parallel()

	records, diags := buildFor(t, builderHeader, [][]string{
		{"张三", "技术部", "", "业绩", "交付质量", "40%", "85"},
		{"", "", "", "", "工作业绩总分", "", "85"},
		{"", "", "", "", "总评", ""},
		{"", "", "", "", "能力小计", ""},
	}, BuildOptions{})
	assert.Empty(t, diags)
	require.Len(t, records, 1)
	assert.Equal(t, "交付质量", records[0].IndicatorName)
}

func TestBuildRecords_ReviewersOnlyWhenScored(t *testing.T) {
	t.Parallel()

	records, _ := buildFor(t, builderHeader, [][]string{
		{"张三", "", "", "", "A", "", "85", "交付及时", ""},
		{"", "", "", "", "B", "", "", "没有评分只有说明", "70"},
	}, BuildOptions{})
	require.Len(t, records, 2)

	assert.Equal(t, map[string]ReviewerScore{
		"李四": {Result: "85", Remark: "交付及时"},
	}, records[0].Reviewers)
	assert.Equal(t, map[string]ReviewerScore{
		"王五": {Result: "70"},
	}, records[1].Reviewers)
}

func TestBuildRecords_PeriodHintAndIDs(t *testing.T) {
	t.Parallel()

	labels := []string{"姓名", "指标名称", "考评周期"}
	records, _ := buildFor(t, labels, [][]string{
		{"张三", "A", ""},
		{"", "B", "2024年第2季度"},
	}, BuildOptions{SheetName: "Sheet1", PeriodHint: "2024年第1季度", IDPrefix: "imp1"})
	require.Len(t, records, 2)

	assert.Equal(t, "2024年第1季度", records[0].EvaluationPeriod)
	assert.Equal(t, "2024年第2季度", records[1].EvaluationPeriod)
	assert.Equal(t, "imp1-2", records[0].ID)
	assert.Equal(t, "imp1-3", records[1].ID)
	assert.Equal(t, 3, records[1].SourceRow)
	assert.Equal(t, "Sheet1", records[1].SheetName)

	records, _ = buildFor(t, labels, [][]string{{"张三", "A", ""}}, BuildOptions{})
	require.Len(t, records, 1)
	assert.Equal(t, "row-2", records[0].ID)
}

func TestBuildRecords_RowsWithoutEmployeeAreReported(t *testing.T) {
	t.Parallel()

	records, diags := buildFor(t, builderHeader, [][]string{
		{"", "", "", "", "孤立指标"},
		{"张三", "", "", "", "A"},
	}, BuildOptions{})
	require.Len(t, records, 1)
	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Row)
	assert.Contains(t, diags[0].Message, "孤立指标")
}

func TestBuildRecords_MalformedRows(t *testing.T) {
	t.Parallel()

	labels := []string{"姓名", "指标名称", "权重", "考评日期"}
	data := [][]string{
		{"张三", "A", "40%", "2024-03-15"},
		{"", "B", "", "", "多出来的一列"},
		{"", "C", "很多", "下周"},
		{"姓名", "指标名称", "权重"},
		{"", "", "", ""},
	}
	records, diags := buildFor(t, labels, data, BuildOptions{})
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].IndicatorName)
	require.NotNil(t, records[0].EvaluationDate)
	assert.Equal(t, "2024-03-15", *records[0].EvaluationDate)

	assert.Equal(t, "C", records[1].IndicatorName)
	assert.Nil(t, records[1].Weight)
	assert.Nil(t, records[1].EvaluationDate)

	require.Len(t, diags, 3)
	assert.Equal(t, Diagnostic{Row: 3, Column: 5, Message: diags[0].Message}, diags[0])
	assert.Equal(t, 4, diags[1].Row)
	assert.Equal(t, 3, diags[1].Column)
	assert.Equal(t, 4, diags[2].Row)
	assert.Equal(t, 4, diags[2].Column)
}

func TestIsSummaryIndicator(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSummaryIndicator("工作业绩总分"))
	assert.True(t, IsSummaryIndicator("总评"))
	assert.False(t, IsSummaryIndicator("交付质量"))
}
