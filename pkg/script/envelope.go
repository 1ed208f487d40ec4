// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/params"
)

// EnvRunContext is the environment variable carrying the run envelope to the
// runner process. It is set on one child only and never written into the
// script text.
const EnvRunContext = "SIBRIDGE_RUN_CONTEXT"

// Epilogue publishes schema-mode results after the user script.
const Epilogue = "SI.finalize()\n"

// RunContext is the envelope the orchestrator hands to the runner.
type RunContext struct {
	RunID  string                 `json:"run_id"`
	Mode   params.Mode            `json:"mode"`
	Params map[string]interface{} `json:"params,omitempty"`
	Source *fabric.SourceConfig   `json:"source,omitempty"`
}

// Encode returns the envelope as an environment variable value.
func (rc RunContext) Encode() (string, error) {
	data, err := json.Marshal(rc)
	if err != nil {
		return "", fmt.Errorf("failed to encode run context: %w", err)
	}
	return string(data), nil
}

// DecodeRunContext parses an envelope. Numbers in Params are kept as
// json.Number so integers survive intact.
func DecodeRunContext(s string) (RunContext, error) {
	var rc RunContext
	if strings.TrimSpace(s) == "" {
		return rc, fmt.Errorf("%s is not set", EnvRunContext)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(&rc); err != nil {
		return rc, fmt.Errorf("failed to decode run context: %w", err)
	}
	if !rc.Mode.Valid() {
		return rc, fmt.Errorf("invalid run mode %q", rc.Mode)
	}
	return rc, nil
}

// BuildUnit assembles the executable unit: the verbatim user script and the
// finalize call. The execution context is bound to SI as a predeclared global
// by Exec, so line numbers in the unit match the user script.
func BuildUnit(userScript string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(userScript) + len(Epilogue) + 1)
	buf.WriteString(userScript)
	if !strings.HasSuffix(userScript, "\n") {
		buf.WriteByte('\n')
	}
	buf.WriteString(Epilogue)
	return buf.Bytes()
}
