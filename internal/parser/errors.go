package parser

import "errors"

// 结构性错误：整表导入失败，不返回部分结果
var (
	ErrEmptySheet = errors.New("sheet is empty")
	ErrTooFewRows = errors.New("sheet has fewer than 2 rows")
	ErrNoHeader   = errors.New("no header row found")
)
