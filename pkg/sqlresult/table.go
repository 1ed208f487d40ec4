// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqlresult

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Render draws v as a bordered text table followed by a row count line.
func Render(v VisibleResult) string {
	if len(v.Columns) == 0 {
		return fmt.Sprintf("(%d rows)", len(v.Rows))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(v.Columns...)
	for _, r := range v.Rows {
		cells := make([]string, len(r.values))
		for i, val := range r.values {
			cells[i] = FormatValue(val)
		}
		t.Row(cells...)
	}

	suffix := "rows"
	if len(v.Rows) == 1 {
		suffix = "row"
	}
	return fmt.Sprintf("%s\n(%d %s)", t.String(), len(v.Rows), suffix)
}

// FormatValue renders a cell value for display. NULL is shown as "NULL".
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
