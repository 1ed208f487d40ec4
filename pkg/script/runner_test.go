// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package script

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/params"
	"github.com/teradata-labs/sibridge/pkg/sidechannel"
)

const salesFixture = `
CREATE TABLE sales (region TEXT, amount INTEGER);
INSERT INTO sales VALUES ('East', 10), ('West', 20), ('East', 5);
`

func salesSource(t *testing.T) fabric.SourceConfig {
	t.Helper()
	src := fabric.SourceConfig{
		Name: "sales",
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "sales.db"),
	}
	backend, err := fabric.NewSQLBackend(context.Background(), src, nil)
	require.NoError(t, err)
	_, err = backend.ExecuteBatch(context.Background(), salesFixture)
	require.NoError(t, err)
	require.NoError(t, backend.Close())
	return src
}

func openSales(t *testing.T) fabric.ExecutionBackend {
	t.Helper()
	backend, err := fabric.NewSQLBackend(context.Background(), salesSource(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func run(t *testing.T, mode params.Mode, values map[string]interface{}, backend fabric.ExecutionBackend, userScript string) (sidechannel.Decoded, error) {
	t.Helper()
	var out bytes.Buffer
	sc, err := NewContext(context.Background(), Options{
		Mode:    mode,
		Values:  values,
		Backend: backend,
		Source:  "sales",
		Stdout:  &out,
	})
	require.NoError(t, err)
	execErr := Exec(context.Background(), sc, "unit.star", BuildUnit(userScript))
	return sidechannel.DecodeBytes(out.Bytes()), execErr
}

const regionScript = `
region = SI.params.select("region", options=None, discoveryQuery="SELECT DISTINCT region FROM sales ORDER BY region")
limit = SI.params.slider("limit", label="Rows", min=1, max=10, step=1, default=2)
rows = SI.query("SELECT region, amount FROM sales WHERE region = '%s' ORDER BY amount LIMIT %d" % (region, limit))
print("rows:", len(rows))
SI.chart({"data": [{"type": "bar", "y": rows.column("amount")}]})
`

func TestExec_SchemaMode(t *testing.T) {
	d, err := run(t, params.ModeSchema, map[string]interface{}{"region": "West"}, openSales(t), regionScript)
	require.NoError(t, err)

	_, hasChart := d.Artifact(sidechannel.TagChart)
	assert.False(t, hasChart)

	raw, ok := d.Artifact(sidechannel.TagSchema)
	require.True(t, ok)
	var schema params.Schema
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, []string{"region", "limit"}, schema.Keys())

	region, _ := schema.Get("region")
	assert.Equal(t, []interface{}{"East", "West"}, region.Options)
	assert.Equal(t, "East", region.Default)

	limit, _ := schema.Get("limit")
	assert.Equal(t, params.TypeInt, limit.ValueType)
	assert.Equal(t, "Rows", limit.Label)
	assert.Equal(t, float64(2), limit.Default)

	// The schema pass queries with declared defaults, not supplied values.
	assert.Equal(t, []string{"rows: 2"}, d.Logs)
}

func TestExec_ExecutionMode(t *testing.T) {
	d, err := run(t, params.ModeExecution, map[string]interface{}{
		"region": "East",
		"limit":  json.Number("1"),
	}, openSales(t), regionScript)
	require.NoError(t, err)

	_, hasSchema := d.Artifact(sidechannel.TagSchema)
	assert.False(t, hasSchema)
	assert.Equal(t, []string{"rows: 1"}, d.Logs)

	chart, ok := d.Artifact(sidechannel.TagChart)
	require.True(t, ok)
	assert.JSONEq(t, `{"data":[{"type":"bar","y":[5]}]}`, string(chart))
}

func TestExec_SliderFallsBackOnMalformedValue(t *testing.T) {
	d, err := run(t, params.ModeExecution, map[string]interface{}{"n": "abc"}, nil, `
n = SI.params.slider("n", min=0, max=10, step=1, default=5)
print(n, type(n))
x = SI.params.slider("x", min=0, max=1, step=0.1, default=0)
print(x, type(x))
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"5 int", "0.0 float"}, d.Logs)
}

func TestExec_QueryFailureIsLogged(t *testing.T) {
	d, err := run(t, params.ModeExecution, nil, openSales(t), `
missing = SI.query("SELECT * FROM nope")
print("missing:", len(missing), missing.columns)
found = SI.query("SELECT COUNT(*) AS n FROM sales")
print("found:", found[0]["n"])
`)
	require.NoError(t, err)
	require.Len(t, d.Logs, 3)
	assert.Contains(t, d.Logs[0], "Query error:")
	assert.Equal(t, "missing: 0 []", d.Logs[1])
	assert.Equal(t, "found: 3", d.Logs[2])
}

func TestExec_QueryWithoutDataSource(t *testing.T) {
	d, err := run(t, params.ModeExecution, nil, nil, `rows = SI.query("SELECT 1")`)
	require.NoError(t, err)
	require.Len(t, d.Logs, 1)
	assert.Contains(t, d.Logs[0], ErrNoDataSource.Error())
}

func TestExec_MutationBatch(t *testing.T) {
	d, err := run(t, params.ModeExecution, nil, openSales(t), `
res = SI.query("UPDATE sales SET amount = amount + 1 WHERE region = 'East'")
print(res[0]["status"], res[0]["affected_rows"])
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Success 2"}, d.Logs)
}

func TestExec_SchemaPublishedOnFailure(t *testing.T) {
	d, err := run(t, params.ModeSchema, nil, nil, `
a = SI.params.get("a", "x")
fail("boom")
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	raw, ok := d.Artifact(sidechannel.TagSchema)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":{"key":"a","kind":"text","label":"a","default":"x"}}`, string(raw))
}

func TestExec_FinalizeOnce(t *testing.T) {
	var out bytes.Buffer
	sc, err := NewContext(context.Background(), Options{Mode: params.ModeSchema, Stdout: &out})
	require.NoError(t, err)
	require.NoError(t, Exec(context.Background(), sc, "unit.star", BuildUnit("SI.finalize()")))
	assert.Equal(t, "SCHEMA:{}\n", out.String())
}

func TestExec_RowSetRendering(t *testing.T) {
	d, err := run(t, params.ModeExecution, nil, openSales(t), `
rows = SI.query("SELECT region, amount FROM sales ORDER BY amount")
print(rows)
for r in rows:
    print(r["region"])
`)
	require.NoError(t, err)
	assert.Contains(t, d.Logs, "(3 rows)")
	assert.Equal(t, []string{"East", "East", "West"}, d.Logs[len(d.Logs)-3:])
}

func TestExec_ChartFromJSONString(t *testing.T) {
	d, err := run(t, params.ModeExecution, nil, nil, `SI.chart(json.encode({"a": [1, 2]}))`)
	require.NoError(t, err)
	chart, ok := d.Artifact(sidechannel.TagChart)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":[1,2]}`, string(chart))
}

func TestExec_Figure(t *testing.T) {
	d, err := run(t, params.ModeExecution, nil, openSales(t), `
rows = SI.query("SELECT region, SUM(amount) AS total FROM sales GROUP BY region ORDER BY region")
fig = SI.figure(rows, kind="pie", title="Totals")
print(fig["series"][0]["type"], fig["title"]["text"])
SI.chart(fig)
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"pie Totals"}, d.Logs)

	raw, ok := d.Artifact(sidechannel.TagChart)
	require.True(t, ok)
	var chart struct {
		Series []struct {
			Data []struct {
				Name  string  `json:"name"`
				Value float64 `json:"value"`
			} `json:"data"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(raw, &chart))
	require.Len(t, chart.Series, 1)
	require.Len(t, chart.Series[0].Data, 2)
	assert.Equal(t, "East", chart.Series[0].Data[0].Name)
	assert.Equal(t, float64(15), chart.Series[0].Data[0].Value)
	assert.Equal(t, "West", chart.Series[0].Data[1].Name)
	assert.Equal(t, float64(20), chart.Series[0].Data[1].Value)
}

func TestExec_FigureErrors(t *testing.T) {
	backend := openSales(t)

	_, err := run(t, params.ModeExecution, nil, backend, `SI.figure(SI.query("SELECT region, amount FROM sales"), y="nope")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")

	_, err = run(t, params.ModeExecution, nil, backend, `SI.figure(SI.query("SELECT region, amount FROM sales"), kind="radar")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported chart type")

	_, err = run(t, params.ModeExecution, nil, backend, `SI.figure([1, 2])`)
	require.Error(t, err)
}

func TestExec_SliderBadTypeIsScriptError(t *testing.T) {
	_, err := run(t, params.ModeSchema, nil, nil, `SI.params.slider("n", type="complex")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestBuildUnit(t *testing.T) {
	unit := string(BuildUnit("print(1)"))
	assert.Equal(t, "print(1)\n"+Epilogue, unit)
	assert.Equal(t, "print(1)\n"+Epilogue, string(BuildUnit("print(1)\n")))
}

func TestMain_RunnerBacktraceLines(t *testing.T) {
	unit := filepath.Join(t.TempDir(), "unit.star")
	require.NoError(t, os.WriteFile(unit, BuildUnit("x = 1\ny = x // 0\n"), 0o600))
	env, err := RunContext{Mode: params.ModeExecution}.Encode()
	require.NoError(t, err)
	t.Setenv(EnvRunContext, env)

	var stdout, stderr bytes.Buffer
	require.Equal(t, ExitScriptError, Main([]string{unit}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "unit.star:2:", "backtrace points at the user's line")
	assert.NotContains(t, stderr.String(), "unit.star:3:")
}

func TestRunContext_RoundTrip(t *testing.T) {
	rc := RunContext{
		RunID:  "r1",
		Mode:   params.ModeExecution,
		Params: map[string]interface{}{"n": 3, "s": "x"},
		Source: &fabric.SourceConfig{Name: "sales", Type: "sqlite", DSN: "/tmp/x.db"},
	}
	enc, err := rc.Encode()
	require.NoError(t, err)

	back, err := DecodeRunContext(enc)
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), back.Params["n"])
	assert.Equal(t, "sales", back.Source.Name)

	_, err = DecodeRunContext("")
	assert.Error(t, err)
	_, err = DecodeRunContext(`{"mode":"preview"}`)
	assert.Error(t, err)
}

func TestMain_Runner(t *testing.T) {
	src := salesSource(t)
	unit := filepath.Join(t.TempDir(), "unit.star")
	require.NoError(t, os.WriteFile(unit, BuildUnit(`
r = SI.params.select("region", discoveryQuery="SELECT region FROM sales ORDER BY region")
print("region", r)
`), 0o600))

	env, err := RunContext{RunID: "t", Mode: params.ModeSchema, Source: &src}.Encode()
	require.NoError(t, err)
	t.Setenv(EnvRunContext, env)

	var stdout, stderr bytes.Buffer
	code := Main([]string{unit}, &stdout, &stderr)
	require.Equal(t, ExitOK, code, stderr.String())

	d := sidechannel.DecodeBytes(stdout.Bytes())
	assert.Equal(t, []string{"region East"}, d.Logs)
	raw, ok := d.Artifact(sidechannel.TagSchema)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"options":["East","West"]`)
}

func TestMain_RunnerErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, ExitSetupError, Main(nil, &stdout, &stderr))

	t.Setenv(EnvRunContext, "")
	assert.Equal(t, ExitSetupError, Main([]string{"x.star"}, &stdout, &stderr))

	unit := filepath.Join(t.TempDir(), "unit.star")
	require.NoError(t, os.WriteFile(unit, BuildUnit(`x = 1 // 0`), 0o600))
	env, err := RunContext{Mode: params.ModeExecution}.Encode()
	require.NoError(t, err)
	t.Setenv(EnvRunContext, env)

	stderr.Reset()
	assert.Equal(t, ExitScriptError, Main([]string{unit}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "division by zero")
}
