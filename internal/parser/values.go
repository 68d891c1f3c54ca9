package parser

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ParseWeight 将权重单元格归一化为 0-1 的小数
//
//	"40%" -> 0.4, "40" -> 0.4, "0.4" -> 0.4, "150" -> 1.5
//
// 空值或无法解析时返回 nil（0 是合法权重，不能与缺失混淆）。
func ParseWeight(value string) *float64 {
	s := strings.TrimSpace(value)
	s = strings.ReplaceAll(s, "％", "%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}

	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil || !isFinite(f) {
			return nil
		}
		w := f / 100
		return &w
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return nil
	}
	if f > 1 {
		f = f / 100
	}
	return &f
}

// isFinite NaN/Inf 无法写入 JSON，按无法解析处理
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
	"2006-1-2",
	"2006.01.02",
	"2006.1.2",
	"2006年1月2日",
	"2006年01月02日",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04",
	time.RFC3339,
	"01-02-06",
	"1/2/06",
	"1/2/2006",
}

// 超过此值的数字不是合法的 Excel 日期序列号（9999-12-31）
const maxExcelSerial = 2958465

// ParseDate 解析考评日期，返回 YYYY-MM-DD；空值或无法解析时返回 nil，不报错
func ParseDate(value string) *string {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return formatDate(t)
		}
	}

	// 未设置数字格式的日期单元格会以序列号形式读出
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return formatDate(t)
		}
	}
	return nil
}

func formatDate(t time.Time) *string {
	s := t.Format("2006-01-02")
	return &s
}
