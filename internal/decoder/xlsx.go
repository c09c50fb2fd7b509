package decoder

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// xlsxSource holds the first sheet of a workbook with cells already typed.
type xlsxSource struct {
	headers []string
	rows    [][]any
	pos     int
}

func (s *xlsxSource) next() ([]any, int, error) {
	if s.pos >= len(s.rows) {
		return nil, s.pos + 1, io.EOF
	}
	s.pos++
	// row 1 is the header, data starts at sheet row 2
	return s.rows[s.pos-1], s.pos + 1, nil
}

func openXLSX(data []byte) (*xlsxSource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &xlsxSource{}, nil
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &xlsxSource{}, nil
	}

	s := &xlsxSource{headers: rows[0]}
	for r := 1; r < len(rows); r++ {
		values := make([]any, len(rows[r]))
		for c, raw := range rows[r] {
			if raw == "" {
				values[c] = ""
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			values[c] = typedCell(f, sheet, axis, raw)
		}
		s.rows = append(s.rows, values)
	}
	return s, nil
}

var cellDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// typedCell keeps the workbook's own typing: numbers, booleans and ISO dates,
// everything else as text.
func typedCell(f *excelize.File, sheet, axis, raw string) any {
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeDate:
		for _, layout := range cellDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	return raw
}
