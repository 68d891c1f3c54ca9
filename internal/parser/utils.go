package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)

	reQuarterCN = regexp.MustCompile(`(\d{4})\s*年\s*第?\s*([1-4一二三四])\s*季度`)
	reQuarterQ  = regexp.MustCompile(`(\d{4})\s*[-_ ]?\s*[Qq]\s*([1-4])`)
	reHalfYear  = regexp.MustCompile(`(\d{4})\s*年\s*([上下])\s*半年`)
	reYearMonth = regexp.MustCompile(`(\d{4})\s*年\s*0?(\d{1,2})\s*月`)
	reYearOnly  = regexp.MustCompile(`(\d{4})\s*年度`)
)

var chineseQuarter = map[string]string{"一": "1", "二": "2", "三": "3", "四": "4"}

// PeriodFromFilename 从上传文件名推断默认考评周期
// 支持格式: "2024年第1季度" / "2024-Q1" / "2024年上半年" / "2024年3月" / "2024年度"
// 均无法识别时返回去掉扩展名的文件名
func PeriodFromFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == "/" {
		return ""
	}

	if m := reQuarterCN.FindStringSubmatch(base); m != nil {
		q := m[2]
		if v, ok := chineseQuarter[q]; ok {
			q = v
		}
		return m[1] + "年第" + q + "季度"
	}
	if m := reQuarterQ.FindStringSubmatch(base); m != nil {
		return m[1] + "年第" + m[2] + "季度"
	}
	if m := reHalfYear.FindStringSubmatch(base); m != nil {
		return m[1] + "年" + m[2] + "半年"
	}
	if m := reYearMonth.FindStringSubmatch(base); m != nil {
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return m[1] + "年" + strconv.Itoa(month) + "月"
		}
	}
	if m := reYearOnly.FindStringSubmatch(base); m != nil {
		return m[1] + "年度"
	}
	return strings.TrimSpace(base)
}

// NormalizeColumnName 规范化列名，去除所有空白（用于规则匹配）
func NormalizeColumnName(name string) string {
	return reWhitespace.ReplaceAllString(strings.TrimSpace(name), "")
}

// cleanLabel 去除首尾空白与换行，保留名称内部空格（用于提取评价人姓名）
func cleanLabel(label string) string {
	label = strings.ReplaceAll(label, "\r", "")
	label = strings.ReplaceAll(label, "\n", "")
	label = strings.ReplaceAll(label, "\t", " ")
	return strings.TrimSpace(label)
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// HasAnyPrefix 检查字符串是否以任意一个前缀开头
func HasAnyPrefix(text string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// EqualsAny 检查字符串是否与任意一个候选值相等
func EqualsAny(text string, candidates ...string) bool {
	for _, c := range candidates {
		if text == c {
			return true
		}
	}
	return false
}

func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func nonEmptyCells(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
