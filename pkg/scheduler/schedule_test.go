// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Validate(t *testing.T) {
	valid := Schedule{Name: "daily", Cron: "0 6 * * *", Script: "print(1)"}

	tests := []struct {
		name    string
		mutate  func(s *Schedule)
		wantErr string
	}{
		{"valid", func(s *Schedule) {}, ""},
		{"descriptor", func(s *Schedule) { s.Cron = "@every 10m" }, ""},
		{"timezone", func(s *Schedule) { s.Timezone = "Europe/Berlin" }, ""},
		{"script file", func(s *Schedule) { s.Script = ""; s.ScriptFile = "report.star" }, ""},
		{"missing name", func(s *Schedule) { s.Name = "" }, "name is required"},
		{"name with slash", func(s *Schedule) { s.Name = "a/b" }, "must not contain"},
		{"missing cron", func(s *Schedule) { s.Cron = "" }, "cron expression is required"},
		{"bad cron", func(s *Schedule) { s.Cron = "61 * * * *" }, "invalid cron expression"},
		{"seconds field", func(s *Schedule) { s.Cron = "0 0 6 * * *" }, "invalid cron expression"},
		{"tz prefix", func(s *Schedule) { s.Cron = "CRON_TZ=UTC 0 6 * * *" }, "timezone field"},
		{"bad timezone", func(s *Schedule) { s.Timezone = "Mars/Olympus" }, "invalid timezone"},
		{"no script", func(s *Schedule) { s.Script = "" }, "exactly one of"},
		{"both scripts", func(s *Schedule) { s.ScriptFile = "x.star" }, "exactly one of"},
		{"negative timeout", func(s *Schedule) { s.TimeoutSeconds = -1 }, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchedule_NextHonorsTimezone(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	utc := Schedule{Name: "a", Cron: "0 6 * * *", Script: "x"}
	next, err := utc.Next(base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), next.UTC())

	tokyo := Schedule{Name: "b", Cron: "0 6 * * *", Timezone: "Asia/Tokyo", Script: "x"}
	next, err = tokyo.Next(base)
	require.NoError(t, err)
	// 06:00 JST is 21:00 UTC the previous day.
	assert.Equal(t, time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC), next.UTC())
}

func TestSchedule_Source(t *testing.T) {
	inline := Schedule{Name: "a", Script: "print(1)"}
	src, err := inline.Source()
	require.NoError(t, err)
	assert.Equal(t, "print(1)", src)

	path := filepath.Join(t.TempDir(), "report.star")
	require.NoError(t, os.WriteFile(path, []byte("print(2)"), 0o600))
	fromFile := Schedule{Name: "b", ScriptFile: path}
	src, err = fromFile.Source()
	require.NoError(t, err)
	assert.Equal(t, "print(2)", src)

	missing := Schedule{Name: "c", ScriptFile: filepath.Join(t.TempDir(), "nope.star")}
	_, err = missing.Source()
	assert.Error(t, err)
}
