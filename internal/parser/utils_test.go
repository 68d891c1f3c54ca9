package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeriodFromFilename(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"2024年第1季度绩效.xlsx":               "2024年第1季度",
		"2024年第三季度.xlsx":                 "2024年第3季度",
		"考核2024-Q2.xls":                  "2024年第2季度",
		"perf_2024_q3.xlsx":              "2024年第3季度",
		"2024年上半年考评.xlsx":                "2024年上半年",
		"2024年下半年.xlsx":                  "2024年下半年",
		"2024年03月绩效.xlsx":                 "2024年3月",
		"/tmp/uploads/2024年度总结.xlsx":      "2024年度",
		"C:\\data\\2025年12月考评汇总.xlsx": "2025年12月",
		"绩效数据.xlsx":                       "绩效数据",
	}
	for filename, want := range cases {
		assert.Equal(t, want, PeriodFromFilename(filename), filename)
	}
	assert.Equal(t, "", PeriodFromFilename(""))
}

func TestNormalizeColumnName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "上级评分-王经理（100.0%）", NormalizeColumnName(" 上级评分-王经理\n（100.0%） "))
	assert.Equal(t, "张 三", cleanLabel("\t张 三\r\n"))
}
