package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat 不是 .xlsx/.xlsm/.xls 文件
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoSheet 工作簿中没有指定的工作表
	ErrNoSheet = errors.New("sheet not found")
	// ErrInvalidWorkbook 文件损坏或不是工作簿
	ErrInvalidWorkbook = errors.New("invalid workbook")
)

// Workbook 只读工作簿：按工作表名返回单元格文本矩阵
type Workbook struct {
	sheets []string
	rows   map[string][][]string
}

// Ext 返回规范化的扩展名（小写，带点）
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Supported 文件名是否为支持的工作簿格式
func Supported(filename string) bool {
	switch Ext(filename) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

// Open 打开工作簿文件，按扩展名选择解码器
func Open(path string) (*Workbook, error) {
	return OpenFile(path, Ext(path))
}

// OpenFile 按给定扩展名解码文件（上传的临时文件名不带原始扩展名）
func OpenFile(path, ext string) (*Workbook, error) {
	switch strings.ToLower(ext) {
	case ".xlsx", ".xlsm", ".xls":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return OpenReader(f, ext)
}

// OpenReader 从 reader 读取工作簿，ext 为 ".xlsx"、".xlsm" 或 ".xls"
func OpenReader(r io.Reader, ext string) (*Workbook, error) {
	switch strings.ToLower(ext) {
	case ".xlsx", ".xlsm":
		return readXLSX(r)
	case ".xls":
		return readXLS(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func readXLSX(r io.Reader) (*Workbook, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer file.Close()

	wb := &Workbook{rows: make(map[string][][]string)}
	for _, name := range file.GetSheetList() {
		rows, err := file.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		wb.sheets = append(wb.sheets, name)
		wb.rows[name] = rows
	}
	return wb, nil
}

// readXLS 解码旧版 .xls；extrame/xls 遇到损坏文件可能 panic，统一转为 ErrInvalidWorkbook
func readXLS(r io.Reader) (wb *Workbook, err error) {
	defer func() {
		if p := recover(); p != nil {
			wb, err = nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, p)
		}
	}()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}
	book, err := xls.OpenReader(bytes.NewReader(b), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}

	wb = &Workbook{rows: make(map[string][][]string)}
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		name := sheet.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		// 空行保留为 nil，保证行号与 Excel 一致
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for j := 0; j <= int(sheet.MaxRow); j++ {
			row := sheet.Row(j)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cols := make([]string, row.LastCol())
			for k := 0; k < row.LastCol(); k++ {
				cols[k] = row.Col(k)
			}
			rows = append(rows, cols)
		}
		wb.sheets = append(wb.sheets, name)
		wb.rows[name] = trimTrailingBlank(rows)
	}
	return wb, nil
}

func trimTrailingBlank(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 {
		blank := true
		for _, c := range rows[end-1] {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}
		if !blank {
			break
		}
		end--
	}
	return rows[:end]
}

// SheetNames 按工作簿顺序返回工作表名
func (w *Workbook) SheetNames() []string {
	out := make([]string, len(w.sheets))
	copy(out, w.sheets)
	return out
}

// FirstSheet 返回第一个工作表名
func (w *Workbook) FirstSheet() (string, error) {
	if len(w.sheets) == 0 {
		return "", ErrNoSheet
	}
	return w.sheets[0], nil
}

// Rows 返回工作表的单元格文本矩阵；name 为空时取第一个工作表
func (w *Workbook) Rows(name string) ([][]string, error) {
	if name == "" {
		first, err := w.FirstSheet()
		if err != nil {
			return nil, err
		}
		name = first
	}
	rows, ok := w.rows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSheet, name)
	}
	return rows, nil
}
