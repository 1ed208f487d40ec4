// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqlresult

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the worksheet WriteXLSX fills when no name is given.
const DefaultSheetName = "Result"

// WriteXLSX writes v as a single-sheet workbook: a bold header row of column
// names followed by one row per result row. NULL cells are left empty.
func WriteXLSX(w io.Writer, v VisibleResult, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(v.Columns))
	for i, c := range v.Columns {
		header[i] = c
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	if len(v.Columns) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(v.Columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, r := range v.Rows {
		cells := make([]interface{}, len(r.values))
		for j, val := range r.values {
			cells[j] = cellValue(val)
		}
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// cellValue maps driver values onto types excelize stores natively.
func cellValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return x
	default:
		return FormatValue(x)
	}
}
