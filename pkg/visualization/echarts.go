// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package visualization builds ECharts option objects from query results.
//
// Figures contain only maps, []interface{} slices, strings, bools and
// numbers so they convert cleanly into script values and JSON.
package visualization

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/teradata-labs/sibridge/pkg/sqlresult"
)

// EChartsGenerator generates styled ECharts configurations
type EChartsGenerator struct {
	style *StyleConfig
}

// NewEChartsGenerator creates a new ECharts config generator
func NewEChartsGenerator(style *StyleConfig) *EChartsGenerator {
	if style == nil {
		style = DefaultStyleConfig()
	}
	return &EChartsGenerator{style: style}
}

// Generate creates the ECharts option object plotting v.
func (eg *EChartsGenerator) Generate(v sqlresult.VisibleResult, opts FigureOptions) (map[string]interface{}, error) {
	chartType, err := ParseChartType(string(opts.Type))
	if err != nil {
		return nil, err
	}

	x, ys, err := resolveColumns(v, chartType, opts)
	if err != nil {
		return nil, err
	}

	var config map[string]interface{}
	switch chartType {
	case ChartTypeBar:
		config = eg.generateBarChart(v, x, ys, opts)
	case ChartTypeLine:
		config = eg.generateLineChart(v, x, ys)
	case ChartTypePie:
		config = eg.generatePieChart(v, x, ys[0])
	case ChartTypeScatter:
		config = eg.generateScatterChart(v, x, ys[0])
	}

	if opts.Title != "" {
		config["title"] = map[string]interface{}{
			"text": opts.Title,
			"left": "center",
			"textStyle": map[string]interface{}{
				"color":      eg.style.ColorText,
				"fontFamily": eg.style.FontFamily,
				"fontSize":   eg.style.FontSizeTitle,
			},
		}
	}
	return config, nil
}

// GenerateJSON is Generate followed by JSON encoding.
func (eg *EChartsGenerator) GenerateJSON(v sqlresult.VisibleResult, opts FigureOptions) (string, error) {
	config, err := eg.Generate(v, opts)
	if err != nil {
		return "", err
	}
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ECharts config: %w", err)
	}
	return string(jsonBytes), nil
}

// generateBarChart creates a bar chart configuration
func (eg *EChartsGenerator) generateBarChart(v sqlresult.VisibleResult, x string, ys []string, opts FigureOptions) map[string]interface{} {
	labels := labelsOf(v, x)
	columns := make([][]interface{}, len(ys))
	for i, y := range ys {
		columns[i] = valuesOf(v, y)
	}
	if opts.SortDesc && len(ys) == 1 {
		sortByValue(labels, columns[0])
	}

	categoryAxis := map[string]interface{}{
		"type":      "category",
		"data":      labels,
		"axisLine":  eg.axisLine(),
		"axisLabel": eg.axisLabelStyle(),
	}
	valueAxis := map[string]interface{}{
		"type":      "value",
		"axisLine":  eg.axisLine(),
		"axisLabel": eg.axisLabelStyle(),
		"splitLine": eg.splitLineStyle(),
	}

	xAxis, yAxis := categoryAxis, valueAxis
	radius := []interface{}{4, 4, 0, 0}
	gradientX2, gradientY2 := 0, 1
	labelPosition := "top"
	if opts.Horizontal {
		xAxis, yAxis = valueAxis, categoryAxis
		radius = []interface{}{0, 4, 4, 0}
		gradientX2, gradientY2 = 1, 0
		labelPosition = "right"
	}

	series := make([]interface{}, len(ys))
	for i, y := range ys {
		color := eg.style.seriesColor(i)
		series[i] = map[string]interface{}{
			"name": y,
			"type": "bar",
			"data": columns[i],
			"itemStyle": map[string]interface{}{
				"color": map[string]interface{}{
					"type": "linear",
					"x":    0,
					"y":    0,
					"x2":   gradientX2,
					"y2":   gradientY2,
					"colorStops": []interface{}{
						map[string]interface{}{"offset": 0, "color": color},
						map[string]interface{}{"offset": 1, "color": darkenColor(color, 0.2)},
					},
				},
				"borderRadius": radius,
				"shadowBlur":   eg.style.ShadowBlur,
				"shadowColor":  color + "66",
			},
			"emphasis": eg.emphasis(color),
			"label": map[string]interface{}{
				"show":       len(ys) == 1,
				"position":   labelPosition,
				"color":      eg.style.ColorTextMuted,
				"fontFamily": eg.style.FontFamily,
				"fontSize":   eg.style.FontSizeLabel,
			},
		}
	}

	config := eg.base()
	config["grid"] = eg.gridConfig()
	config["tooltip"] = eg.tooltipConfig("axis")
	config["xAxis"] = xAxis
	config["yAxis"] = yAxis
	config["series"] = series
	if len(ys) > 1 {
		config["legend"] = eg.legend(ys)
	}
	return config
}

// generateLineChart creates a line chart configuration
func (eg *EChartsGenerator) generateLineChart(v sqlresult.VisibleResult, x string, ys []string) map[string]interface{} {
	series := make([]interface{}, len(ys))
	for i, y := range ys {
		color := eg.style.seriesColor(i)
		s := map[string]interface{}{
			"name":   y,
			"type":   "line",
			"data":   valuesOf(v, y),
			"smooth": true,
			"lineStyle": map[string]interface{}{
				"color":       color,
				"width":       2,
				"shadowBlur":  eg.style.ShadowBlur,
				"shadowColor": color + "66",
			},
			"itemStyle": map[string]interface{}{
				"color": color,
			},
			"emphasis": map[string]interface{}{
				"lineStyle": map[string]interface{}{
					"shadowBlur": eg.style.ShadowBlur * 2,
				},
			},
		}
		// Stacked gradients hide each other; only a lone series gets an area.
		if len(ys) == 1 {
			s["areaStyle"] = map[string]interface{}{
				"color": map[string]interface{}{
					"type": "linear",
					"x":    0,
					"y":    0,
					"x2":   0,
					"y2":   1,
					"colorStops": []interface{}{
						map[string]interface{}{"offset": 0, "color": color + "66"},
						map[string]interface{}{"offset": 1, "color": color + "00"},
					},
				},
			}
		}
		series[i] = s
	}

	config := eg.base()
	config["grid"] = eg.gridConfig()
	config["tooltip"] = eg.tooltipConfig("axis")
	config["xAxis"] = map[string]interface{}{
		"type":      "category",
		"data":      labelsOf(v, x),
		"axisLine":  eg.axisLine(),
		"axisLabel": eg.axisLabelStyle(),
	}
	config["yAxis"] = map[string]interface{}{
		"type":      "value",
		"axisLine":  eg.axisLine(),
		"axisLabel": eg.axisLabelStyle(),
		"splitLine": eg.splitLineStyle(),
	}
	config["series"] = series
	if len(ys) > 1 {
		config["legend"] = eg.legend(ys)
	}
	return config
}

// generatePieChart creates a pie chart configuration
func (eg *EChartsGenerator) generatePieChart(v sqlresult.VisibleResult, x, y string) map[string]interface{} {
	labels := labelsOf(v, x)
	values := valuesOf(v, y)

	data := make([]interface{}, 0, len(labels))
	for i, label := range labels {
		data = append(data, map[string]interface{}{
			"name":  label,
			"value": values[i],
		})
	}

	config := eg.base()
	config["tooltip"] = eg.tooltipConfig("item")
	config["color"] = stringsToList(eg.style.ColorPalette)
	config["legend"] = map[string]interface{}{
		"orient":    "vertical",
		"left":      "left",
		"textStyle": eg.textStyle(eg.style.ColorText),
	}
	config["series"] = []interface{}{
		map[string]interface{}{
			"name":     y,
			"type":     "pie",
			"radius":   "55%",
			"center":   []interface{}{"50%", "50%"},
			"data":     data,
			"emphasis": eg.emphasis(eg.style.ColorPrimary),
			"label":    eg.textStyle(eg.style.ColorText),
		},
	}
	return config
}

// generateScatterChart creates a scatter plot configuration
func (eg *EChartsGenerator) generateScatterChart(v sqlresult.VisibleResult, x, y string) map[string]interface{} {
	xs := valuesOf(v, x)
	ys := valuesOf(v, y)
	data := make([]interface{}, 0, len(xs))
	for i := range xs {
		if xs[i] == nil || ys[i] == nil {
			continue
		}
		data = append(data, []interface{}{xs[i], ys[i]})
	}

	config := eg.base()
	config["grid"] = eg.gridConfig()
	config["tooltip"] = eg.tooltipConfig("item")
	config["xAxis"] = eg.namedValueAxis(x, 30)
	config["yAxis"] = eg.namedValueAxis(y, 40)
	config["series"] = []interface{}{
		map[string]interface{}{
			"type":       "scatter",
			"symbolSize": 14,
			"data":       data,
			"itemStyle": map[string]interface{}{
				"color":       eg.style.ColorPrimary,
				"shadowBlur":  eg.style.ShadowBlur,
				"shadowColor": eg.style.ColorPrimary + "66",
			},
			"emphasis": eg.emphasis(eg.style.ColorPrimary),
		},
	}
	return config
}

// Helper methods for common config sections

func (eg *EChartsGenerator) base() map[string]interface{} {
	return map[string]interface{}{
		"backgroundColor":   eg.style.ColorBackground,
		"animation":         true,
		"animationDuration": eg.style.AnimationDuration,
		"animationEasing":   eg.style.AnimationEasing,
	}
}

func (eg *EChartsGenerator) gridConfig() map[string]interface{} {
	return map[string]interface{}{
		"left":         "10%",
		"right":        "5%",
		"bottom":       "10%",
		"top":          "15%",
		"containLabel": true,
	}
}

func (eg *EChartsGenerator) tooltipConfig(trigger string) map[string]interface{} {
	return map[string]interface{}{
		"trigger":         trigger,
		"backgroundColor": eg.style.ColorGlass,
		"borderColor":     eg.style.ColorPrimary,
		"borderWidth":     1,
		"textStyle": map[string]interface{}{
			"color":      eg.style.ColorText,
			"fontFamily": eg.style.FontFamily,
			"fontSize":   eg.style.FontSizeTooltip,
		},
	}
}

func (eg *EChartsGenerator) legend(names []string) map[string]interface{} {
	return map[string]interface{}{
		"data":      stringsToList(names),
		"top":       "bottom",
		"textStyle": eg.textStyle(eg.style.ColorText),
	}
}

func (eg *EChartsGenerator) emphasis(color string) map[string]interface{} {
	return map[string]interface{}{
		"itemStyle": map[string]interface{}{
			"shadowBlur":  eg.style.ShadowBlur * 2,
			"shadowColor": color + "99",
		},
	}
}

func (eg *EChartsGenerator) axisLine() map[string]interface{} {
	return map[string]interface{}{
		"lineStyle": map[string]interface{}{
			"color": eg.style.ColorBorder,
		},
	}
}

func (eg *EChartsGenerator) namedValueAxis(name string, gap int) map[string]interface{} {
	return map[string]interface{}{
		"type":          "value",
		"name":          name,
		"nameLocation":  "middle",
		"nameGap":       gap,
		"nameTextStyle": eg.axisLabelStyle(),
		"axisLine":      eg.axisLine(),
		"axisLabel":     eg.axisLabelStyle(),
		"splitLine":     eg.splitLineStyle(),
	}
}

func (eg *EChartsGenerator) axisLabelStyle() map[string]interface{} {
	return eg.textStyle(eg.style.ColorTextMuted)
}

func (eg *EChartsGenerator) textStyle(color string) map[string]interface{} {
	return map[string]interface{}{
		"color":      color,
		"fontFamily": eg.style.FontFamily,
		"fontSize":   eg.style.FontSizeLabel,
	}
}

func (eg *EChartsGenerator) splitLineStyle() map[string]interface{} {
	return map[string]interface{}{
		"lineStyle": map[string]interface{}{
			"color": eg.style.ColorText + "0d",
			"type":  "dashed",
		},
	}
}

// resolveColumns validates the requested columns and fills in the ones left
// empty. Scatter and pie charts plot exactly one value column.
func resolveColumns(v sqlresult.VisibleResult, chartType ChartType, opts FigureOptions) (string, []string, error) {
	for _, name := range append([]string{opts.X}, opts.Y...) {
		if name == "" {
			continue
		}
		if _, ok := v.Column(name); !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	numeric := make([]string, 0, len(v.Columns))
	for _, c := range v.Columns {
		if isNumericColumn(v, c) {
			numeric = append(numeric, c)
		}
	}

	x := opts.X
	if x == "" {
		x = findLabelColumn(v.Columns, numeric, chartType)
	}
	if x == "" {
		return "", nil, fmt.Errorf("%w: no column to plot on the x-axis", ErrMissingColumn)
	}

	ys := opts.Y
	if len(ys) == 0 {
		for _, c := range numeric {
			if c != x {
				ys = append(ys, c)
			}
		}
	}
	if len(ys) == 0 {
		return "", nil, fmt.Errorf("%w: no numeric column to plot", ErrMissingColumn)
	}
	if chartType == ChartTypePie || chartType == ChartTypeScatter {
		ys = ys[:1]
	}
	return x, ys, nil
}

// findLabelColumn picks the first non-numeric column, or the first numeric
// one for scatter plots.
func findLabelColumn(columns, numeric []string, chartType ChartType) string {
	if chartType == ChartTypeScatter {
		if len(numeric) > 0 {
			return numeric[0]
		}
		return ""
	}
	for _, c := range columns {
		if !contains(numeric, c) {
			return c
		}
	}
	if len(columns) > 0 {
		return columns[0]
	}
	return ""
}

// isNumericColumn reports whether the first non-NULL value of name is a number.
func isNumericColumn(v sqlresult.VisibleResult, name string) bool {
	values, _ := v.Column(name)
	for _, val := range values {
		if val == nil {
			continue
		}
		_, ok := toFloat64(val)
		return ok
	}
	return false
}

func labelsOf(v sqlresult.VisibleResult, name string) []interface{} {
	values, _ := v.Column(name)
	labels := make([]interface{}, len(values))
	for i, val := range values {
		labels[i] = sqlresult.FormatValue(val)
	}
	return labels
}

// valuesOf returns the numeric values of a column. Non-numeric cells become
// nil, which ECharts draws as a gap.
func valuesOf(v sqlresult.VisibleResult, name string) []interface{} {
	values, _ := v.Column(name)
	out := make([]interface{}, len(values))
	for i, val := range values {
		switch n := val.(type) {
		case int, int64, float64:
			out[i] = n
		case int32:
			out[i] = int64(n)
		case float32:
			out[i] = float64(n)
		default:
			if f, ok := toFloat64(val); ok {
				out[i] = f
			}
		}
	}
	return out
}

// sortByValue sorts labels and values by value descending
func sortByValue(labels, values []interface{}) {
	type pair struct {
		label interface{}
		value interface{}
	}
	pairs := make([]pair, len(labels))
	for i := range labels {
		pairs[i] = pair{labels[i], values[i]}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		iVal, _ := toFloat64(pairs[i].value)
		jVal, _ := toFloat64(pairs[j].value)
		return iVal > jVal
	})

	for i := range pairs {
		labels[i] = pairs[i].label
		values[i] = pairs[i].value
	}
}

// toFloat64 converts numeric cells, including decimal strings some drivers
// return for NUMERIC columns.
func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// darkenColor darkens a hex color by a percentage (0.0-1.0)
func darkenColor(hexColor string, amount float64) string {
	color := strings.TrimPrefix(hexColor, "#")

	var r, g, b uint8
	switch len(color) {
	case 3:
		rgb, err := strconv.ParseUint(color, 16, 12)
		if err != nil {
			return hexColor
		}
		r = uint8((rgb >> 8) & 0xF) // #nosec G115 -- masked to 4 bits
		r = r*16 + r
		g = uint8((rgb >> 4) & 0xF) // #nosec G115 -- masked to 4 bits
		g = g*16 + g
		b = uint8(rgb & 0xF) // #nosec G115 -- masked to 4 bits
		b = b*16 + b
	case 6:
		rgb, err := strconv.ParseUint(color, 16, 24)
		if err != nil {
			return hexColor
		}
		r = uint8((rgb >> 16) & 0xFF) // #nosec G115 -- masked to 8 bits
		g = uint8((rgb >> 8) & 0xFF)  // #nosec G115 -- masked to 8 bits
		b = uint8(rgb & 0xFF)         // #nosec G115 -- masked to 8 bits
	default:
		return hexColor
	}

	r = uint8(float64(r) * (1.0 - amount))
	g = uint8(float64(g) * (1.0 - amount))
	b = uint8(float64(b) * (1.0 - amount))
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func stringsToList(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
