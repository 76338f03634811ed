package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"htmlstat/pkg/types"
)

const xlsxSheet = "Report"

// renderXLSX writes a single-sheet workbook with the same flattened rows as
// the csv export plus a two-line summary header.
func renderXLSX(w io.Writer, result *types.AnalysisResult) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := setRow(f, 1, []any{"Files analyzed", result.FilesAnalyzed}); err != nil {
		return err
	}
	if err := setRow(f, 2, []any{"Max depth", result.MaxDepth}); err != nil {
		return err
	}

	header := make([]any, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := setRow(f, 4, header); err != nil {
		return err
	}
	for i, row := range flattenRows(result) {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := setRow(f, 5+i, cells); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(xlsxSheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
