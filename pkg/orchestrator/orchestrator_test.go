// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/params"
	"github.com/teradata-labs/sibridge/pkg/script"
)

const testRunnerEnv = "SIBRIDGE_TEST_RUNNER"

// TestMain turns the test binary into the runner when launched by a test.
func TestMain(m *testing.M) {
	if os.Getenv(testRunnerEnv) == "1" {
		os.Exit(script.Main(os.Args[1:], os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

func newTestOrchestrator(t *testing.T, sources SourceResolver) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Interpreter: os.Args[0],
		Args:        []string{},
		WorkDir:     t.TempDir(),
		Timeout:     30 * time.Second,
		Env:         []string{testRunnerEnv + "=1"},
	}, sources, nil)
	require.NoError(t, err)
	return o
}

func assertNoUnits(t *testing.T, o *Orchestrator) {
	t.Helper()
	units, err := filepath.Glob(filepath.Join(o.Config().WorkDir, unitPrefix+"*"+unitSuffix))
	require.NoError(t, err)
	assert.Empty(t, units)
}

func salesCatalog(t *testing.T) *fabric.Catalog {
	t.Helper()
	src := fabric.SourceConfig{Name: "sales", Type: "sqlite", DSN: filepath.Join(t.TempDir(), "sales.db")}
	backend, err := fabric.NewSQLBackend(context.Background(), src, nil)
	require.NoError(t, err)
	_, err = backend.ExecuteBatch(context.Background(), `
		CREATE TABLE sales (region TEXT, amount INTEGER);
		INSERT INTO sales VALUES ('East', 10), ('West', 20), ('East', 5);
	`)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	catalog, err := fabric.NewCatalog([]fabric.SourceConfig{src}, nil)
	require.NoError(t, err)
	return catalog
}

const salesScript = `
region = SI.params.select("region", options=None, discoveryQuery="SELECT DISTINCT region FROM sales ORDER BY region")
top = SI.params.slider("top", label="Top", min=1, max=10, step=1, default=3)
rows = SI.query("SELECT amount FROM sales WHERE region = '%s' ORDER BY amount DESC LIMIT %d" % (region, top))
print("region:", region)
SI.chart({"data": [{"type": "bar", "y": rows.column("amount")}]})
`

func TestRunScript_SchemaMode(t *testing.T) {
	o := newTestOrchestrator(t, salesCatalog(t))

	res, err := o.RunScript(context.Background(), RunRequest{
		Script:     salesScript,
		DataSource: "sales",
		Mode:       params.ModeSchema,
		Params:     map[string]interface{}{"region": "West"},
	})
	require.NoError(t, err)
	require.False(t, res.Failed, "logs: %v", res.Logs)

	assert.Nil(t, res.Chart)
	require.NotNil(t, res.Schema)
	assert.Equal(t, []string{"region", "top"}, res.Schema.Keys())

	region, _ := res.Schema.Get("region")
	assert.Equal(t, []interface{}{"East", "West"}, region.Options)
	assert.Equal(t, "East", region.Default)
	assert.Equal(t, []string{"region: East"}, res.Logs)
	assert.Equal(t, params.ModeSchema, res.Mode)
	assert.NotEmpty(t, res.RunID)
	assertNoUnits(t, o)
}

func TestRunScript_SchemaIsIdempotent(t *testing.T) {
	o := newTestOrchestrator(t, salesCatalog(t))
	req := RunRequest{Script: salesScript, DataSource: "sales", Mode: params.ModeSchema}

	first, err := o.RunScript(context.Background(), req)
	require.NoError(t, err)
	second, err := o.RunScript(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Schema, second.Schema)
}

func TestRunScript_ExecutionMode(t *testing.T) {
	o := newTestOrchestrator(t, salesCatalog(t))

	res, err := o.RunScript(context.Background(), RunRequest{
		Script:     salesScript,
		DataSource: "sales",
		Mode:       params.ModeExecution,
		Params:     map[string]interface{}{"region": "East", "top": "1"},
	})
	require.NoError(t, err)
	require.False(t, res.Failed, "logs: %v", res.Logs)

	assert.Nil(t, res.Schema)
	assert.JSONEq(t, `{"data":[{"type":"bar","y":[10]}]}`, string(res.Chart))
	assert.Equal(t, []string{"region: East"}, res.Logs)
	assert.Equal(t, 0, res.ExitCode)
	assert.Nil(t, res.Error)
	assertNoUnits(t, o)
}

func TestRunScript_ScriptFailure(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	res, err := o.RunScript(context.Background(), RunRequest{
		Script: "print(\"before\")\nfail(\"boom\")\n",
		Mode:   params.ModeExecution,
	})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindScriptFailure, res.Error.Kind)
	assert.Equal(t, script.ExitScriptError, res.ExitCode)

	require.NotEmpty(t, res.Logs)
	assert.Equal(t, "before", res.Logs[0])
	assert.Contains(t, res.RawStderr, "boom")
	assert.Contains(t, res.Logs[len(res.Logs)-1], "boom")
	assertNoUnits(t, o)
}

func TestRunScript_LaunchFailure(t *testing.T) {
	o, err := New(Config{
		Interpreter: filepath.Join(t.TempDir(), "no-such-runner"),
		WorkDir:     t.TempDir(),
	}, nil, nil)
	require.NoError(t, err)

	res, err := o.RunScript(context.Background(), RunRequest{Script: "print(1)", Mode: params.ModeSchema})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindLaunchFailure, res.Error.Kind)
	assert.Empty(t, res.Logs)
	assert.Nil(t, res.Schema)
	assertNoUnits(t, o)
}

func TestRunScript_Timeout(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	o.cfg.Timeout = 500 * time.Millisecond

	start := time.Now()
	res, err := o.RunScript(context.Background(), RunRequest{
		Script: "print(\"spinning\")\nwhile True:\n    pass\n",
		Mode:   params.ModeExecution,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, res.Failed)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindTimeout, res.Error.Kind)
	require.NotEmpty(t, res.Logs)
	assert.Equal(t, "spinning", res.Logs[0], "output printed before the timeout is kept")
	assertNoUnits(t, o)
}

func TestFailureKind(t *testing.T) {
	exitErr := errors.New("exit status 1")
	tests := []struct {
		name      string
		waitErr   error
		callerErr error
		runErr    error
		want      ErrorKind
		failed    bool
	}{
		{"clean exit", nil, nil, nil, "", false},
		{"clean exit then caller canceled", nil, context.Canceled, context.Canceled, "", false},
		{"clean exit at the deadline", nil, nil, context.DeadlineExceeded, "", false},
		{"canceled", exitErr, context.Canceled, context.Canceled, KindCanceled, true},
		{"timeout", exitErr, nil, context.DeadlineExceeded, KindTimeout, true},
		{"script error", exitErr, nil, nil, KindScriptFailure, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, failed := failureKind(tt.waitErr, tt.callerErr, tt.runErr)
			assert.Equal(t, tt.failed, failed)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestRunScript_Canceled(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	res, err := o.RunScript(ctx, RunRequest{
		Script: "while True:\n    pass\n",
		Mode:   params.ModeExecution,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindCanceled, res.Error.Kind)
	assertNoUnits(t, o)
}

func TestRunScript_InvalidRequests(t *testing.T) {
	o := newTestOrchestrator(t, salesCatalog(t))

	_, err := o.RunScript(context.Background(), RunRequest{Script: "x = 1", Mode: "preview"})
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = o.RunScript(context.Background(), RunRequest{Script: "x = 1", Mode: params.ModeSchema, DataSource: "nope"})
	assert.ErrorIs(t, err, fabric.ErrUnknownSource)

	noSources := newTestOrchestrator(t, nil)
	_, err = noSources.RunScript(context.Background(), RunRequest{Script: "x = 1", Mode: params.ModeSchema, DataSource: "sales"})
	assert.ErrorIs(t, err, fabric.ErrUnknownSource)
}

func TestRunScript_ModeFiltersArtifacts(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	// A script printing raw artifact lines cannot smuggle the wrong kind.
	src := `print('CHART:{"x":1}')` + "\n" + `print('SCHEMA:{}')` + "\n"

	res, err := o.RunScript(context.Background(), RunRequest{Script: src, Mode: params.ModeSchema})
	require.NoError(t, err)
	assert.Nil(t, res.Chart)
	assert.NotNil(t, res.Schema)

	res, err = o.RunScript(context.Background(), RunRequest{Script: src, Mode: params.ModeExecution})
	require.NoError(t, err)
	assert.Nil(t, res.Schema)
	assert.JSONEq(t, `{"x":1}`, string(res.Chart))
}

func TestRunScript_ConcurrentRunsDoNotMix(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	const n = 6
	results := make([]*RunResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := o.RunScript(context.Background(), RunRequest{
				Script: fmt.Sprintf("v = SI.params.get(\"v\", %d)\nprint(\"value\", v)\nSI.chart({\"v\": v})\n", -1),
				Mode:   params.ModeExecution,
				Params: map[string]interface{}{"v": i},
			})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, []string{fmt.Sprintf("value %d", i)}, res.Logs)
		assert.JSONEq(t, fmt.Sprintf(`{"v":%d}`, i), string(res.Chart))
		ids[res.RunID] = true
	}
	assert.Len(t, ids, n)
	assertNoUnits(t, o)
}

func TestRun_DeliverOnce(t *testing.T) {
	r := &run{id: "r1", req: RunRequest{Mode: params.ModeExecution}, start: time.Now(), logger: newNopLogger()}

	first := r.deliver(&RunResult{Logs: []string{"first"}})
	second := r.deliver(&RunResult{Logs: []string{"second"}, Failed: true})

	assert.Same(t, first, second)
	assert.Equal(t, []string{"first"}, second.Logs)
	assert.False(t, second.Failed)
	assert.Equal(t, "r1", first.RunID)
}

func TestRun_Transitions(t *testing.T) {
	r := &run{logger: newNopLogger(), state: StateBuilding}

	r.transition(StateDraining)
	assert.Equal(t, StateBuilding, r.currentState(), "illegal transition is ignored")

	for _, s := range []State{StateLaunching, StateRunning, StateDraining, StateCompleted} {
		r.transition(s)
		assert.Equal(t, s, r.currentState())
	}
	assert.True(t, r.currentState().IsTerminal())

	r.transition(StateFailed)
	assert.Equal(t, StateCompleted, r.currentState(), "terminal states are final")
}
