// Package result renders the artifacts handed back to the uploader: a
// two-sheet workbook of what changed and a CSV of the rows that did not.
package result

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/unclebandit/lead-ingest/internal/model"
)

const (
	SheetUpdated = "tickets updated"
	SheetCreated = "tickets created"
)

// Compile builds the result workbook. Empty buckets still get their sheet,
// so the workbook always has exactly two sheets in this order.
func Compile(updated, created []*model.Lead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetUpdated); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetCreated); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	if err := writeSheet(f, SheetUpdated, updated); err != nil {
		return nil, err
	}
	if err := writeSheet(f, SheetCreated, created); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, leads []*model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	snapshots := make([]model.Fields, len(leads))
	var header []string
	seen := make(map[string]int)
	for i, l := range leads {
		snapshots[i] = l.Snapshot()
		for _, fld := range snapshots[i] {
			if _, ok := seen[fld.Name]; !ok {
				seen[fld.Name] = len(header)
				header = append(header, fld.Name)
			}
		}
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, snap := range snapshots {
		row := make([]any, len(header))
		for _, fld := range snap {
			row[seen[fld.Name]] = cellValue(fld.Value)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case []string:
		return strings.Join(t, ",")
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case nil:
		return ""
	}
	return v
}
