package parser

// isHeaderRow 行内任意单元格等于哨兵标签即为表头行
func isHeaderRow(row []string) bool {
	for _, c := range row {
		if NormalizeColumnName(c) == SentinelLabel {
			return true
		}
	}
	return false
}

// SegmentRows 将整张表按表头行切分为员工考评块。
// 两个表头行之间（均不含）的所有行属于前一个块；只做结构切分，不判断数据行是否有效。
// 找不到表头行时退化为单块模式：第一个非空行作为表头。
func SegmentRows(rows [][]string) ([]Segment, []Diagnostic, error) {
	nonBlank := 0
	for _, row := range rows {
		if !isBlankRow(row) {
			nonBlank++
		}
	}
	if nonBlank == 0 {
		return nil, nil, ErrEmptySheet
	}
	if nonBlank < 2 {
		return nil, nil, ErrTooFewRows
	}

	headerIdx := make([]int, 0)
	for i, row := range rows {
		if isHeaderRow(row) {
			headerIdx = append(headerIdx, i)
		}
	}

	if len(headerIdx) == 0 {
		first := fallbackHeaderIndex(rows)
		return []Segment{{
			Header:    newHeaderBlock(first, rows[first]),
			DataStart: first + 1,
			DataEnd:   len(rows),
			Fallback:  true,
		}}, nil, nil
	}

	var diags []Diagnostic
	for i := 0; i < headerIdx[0]; i++ {
		// 只有一个非空单元格的行视为大标题，不告警
		if nonEmptyCells(rows[i]) > 1 {
			diags = append(diags, Diagnostic{
				Row:     i + 1,
				Message: "数据行出现在第一个表头之前，已丢弃",
			})
		}
	}

	segments := make([]Segment, 0, len(headerIdx))
	for n, h := range headerIdx {
		end := len(rows)
		if n+1 < len(headerIdx) {
			end = headerIdx[n+1]
		}
		segments = append(segments, Segment{
			Header:    newHeaderBlock(h, rows[h]),
			DataStart: h + 1,
			DataEnd:   end,
		})
	}
	return segments, diags, nil
}

func newHeaderBlock(rowIndex int, row []string) HeaderBlock {
	labels := make([]string, len(row))
	for i, c := range row {
		labels[i] = cleanLabel(c)
	}
	return HeaderBlock{
		HeaderRowIndex: rowIndex,
		Labels:         labels,
		Roster:         reviewerRoster(labels),
	}
}

// DataRows 返回块内数据行
func (s Segment) DataRows(rows [][]string) [][]string {
	if s.DataStart >= s.DataEnd || s.DataStart >= len(rows) {
		return nil
	}
	end := s.DataEnd
	if end > len(rows) {
		end = len(rows)
	}
	return rows[s.DataStart:end]
}

// fallbackHeaderIndex 单块模式下的表头行：跳过空行与单元格仅一个的大标题行
func fallbackHeaderIndex(rows [][]string) int {
	firstNonBlank := -1
	for i, row := range rows {
		n := nonEmptyCells(row)
		if n == 0 {
			continue
		}
		if firstNonBlank < 0 {
			firstNonBlank = i
		}
		if n > 1 {
			return i
		}
	}
	return firstNonBlank
}
