package parser

import (
	"fmt"
	"sort"
)

// Options 单表解析选项
type Options struct {
	Filename  string // 原始上传文件名，用于推断默认考评周期
	SheetName string
	IDPrefix  string
}

// Parse 解析一张工作表：切分表头块 -> 每块映射列 -> 每块构建记录。
// 纯函数：不做 I/O，不依赖调用间状态；相同输入（含 IDPrefix）得到相同输出。
func Parse(rows [][]string, opts Options) (*Result, error) {
	segments, diags, err := SegmentRows(rows)
	if err != nil {
		return nil, err
	}

	periodHint := PeriodFromFilename(opts.Filename)
	result := &Result{
		OriginalFilename: opts.Filename,
		SheetName:        opts.SheetName,
		DetectedPeriods:  []string{},
		Headers:          []string{},
		Blocks:           make([]BlockSummary, 0, len(segments)),
		Records:          []IndicatorRecord{},
		Diagnostics:      diags,
	}

	seenHeader := make(map[string]struct{})
	for _, seg := range segments {
		columns, mapDiags := MapColumns(seg.Header.Labels)
		headerRow := seg.Header.HeaderRowIndex + 1
		for _, d := range mapDiags {
			d.Row = headerRow
			result.Diagnostics = append(result.Diagnostics, d)
		}

		if _, ok := columns.Column(RoleIndicatorName); !ok {
			if seg.Fallback {
				return nil, fmt.Errorf("%w: first row has no indicator column", ErrNoHeader)
			}
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Row:     headerRow,
				Message: "表头缺少指标名称列，该块没有可导入的记录",
			})
		}

		for _, label := range seg.Header.Labels {
			if label == "" {
				continue
			}
			if _, ok := seenHeader[label]; ok {
				continue
			}
			seenHeader[label] = struct{}{}
			result.Headers = append(result.Headers, label)
		}

		records, buildDiags := BuildRecords(seg.Header, columns, seg.DataRows(rows), BuildOptions{
			SheetName:  opts.SheetName,
			PeriodHint: periodHint,
			IDPrefix:   opts.IDPrefix,
		})
		result.Diagnostics = append(result.Diagnostics, buildDiags...)
		result.Records = append(result.Records, records...)
		result.Blocks = append(result.Blocks, BlockSummary{
			HeaderRow: headerRow,
			Reviewers: columns.Roster(),
			Records:   len(records),
			Fallback:  seg.Fallback,
		})
	}

	result.TotalRecords = len(result.Records)
	result.DetectedPeriods = detectPeriods(result.Records)
	sort.SliceStable(result.Diagnostics, func(i, j int) bool {
		return result.Diagnostics[i].Row < result.Diagnostics[j].Row
	})
	return result, nil
}

// detectPeriods 按首次出现顺序去重
func detectPeriods(records []IndicatorRecord) []string {
	seen := make(map[string]struct{})
	periods := make([]string, 0)
	for _, rec := range records {
		p := rec.EvaluationPeriod
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		periods = append(periods, p)
	}
	return periods
}
