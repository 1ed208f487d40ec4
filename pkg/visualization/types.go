// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package visualization

import (
	"errors"
	"fmt"
	"strings"
)

// ChartType represents the type of visualization
type ChartType string

const (
	ChartTypeBar     ChartType = "bar"
	ChartTypeLine    ChartType = "line"
	ChartTypePie     ChartType = "pie"
	ChartTypeScatter ChartType = "scatter"
)

var (
	// ErrUnsupportedChart is returned for chart types the generator cannot build.
	ErrUnsupportedChart = errors.New("unsupported chart type")

	// ErrMissingColumn is returned when a named or required column is absent.
	ErrMissingColumn = errors.New("missing column")
)

// ParseChartType normalizes s. The empty string selects a bar chart.
func ParseChartType(s string) (ChartType, error) {
	switch t := ChartType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return ChartTypeBar, nil
	case ChartTypeBar, ChartTypeLine, ChartTypePie, ChartTypeScatter:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChart, s)
	}
}

// FigureOptions select what to plot from a result.
type FigureOptions struct {
	Type  ChartType
	Title string

	// X is the category (or x-value for scatter) column. Detected when empty.
	X string

	// Y are the value columns, one series each. Detected when empty.
	Y []string

	// Horizontal puts bar categories on the y-axis.
	Horizontal bool

	// SortDesc orders single-series bar categories by value, largest first.
	SortDesc bool
}

// StyleConfig holds design tokens applied to every figure
type StyleConfig struct {
	ColorPrimary    string
	ColorBackground string
	ColorText       string
	ColorTextMuted  string
	ColorBorder     string
	ColorGlass      string
	ColorPalette    []string // one color per series

	FontFamily      string
	FontSizeTitle   int
	FontSizeLabel   int
	FontSizeTooltip int

	AnimationDuration int // ms
	AnimationEasing   string

	ShadowBlur int
}

// DefaultStyleConfig returns the default dark theme
func DefaultStyleConfig() *StyleConfig {
	return &StyleConfig{
		ColorPrimary:    "#f37021",
		ColorBackground: "transparent",
		ColorText:       "#f5f5f5",
		ColorTextMuted:  "#b5b5b5",
		ColorBorder:     "#ffffff1a",
		ColorGlass:      "rgba(26, 26, 26, 0.8)",
		ColorPalette: []string{
			"#f37021", // orange
			"#60a5fa", // blue
			"#8b5cf6", // purple
			"#10b981", // green
			"#f59e0b", // amber
			"#ec4899", // pink
			"#14b8a6", // teal
		},
		FontFamily:        "IBM Plex Mono, monospace",
		FontSizeTitle:     14,
		FontSizeLabel:     11,
		FontSizeTooltip:   12,
		AnimationDuration: 1500,
		AnimationEasing:   "cubicOut",
		ShadowBlur:        15,
	}
}

// seriesColor returns the palette color for series i.
func (s *StyleConfig) seriesColor(i int) string {
	if len(s.ColorPalette) == 0 {
		return s.ColorPrimary
	}
	return s.ColorPalette[i%len(s.ColorPalette)]
}
