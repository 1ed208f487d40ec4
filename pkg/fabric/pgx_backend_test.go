// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fabric

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationResult_FromCommandTag(t *testing.T) {
	const stmt = "WITH x AS (SELECT 1 UNION ALL SELECT 2) INSERT INTO t SELECT * FROM x"

	res := mutationResult(stmt, pgconn.NewCommandTag("INSERT 0 2"), time.Now())

	assert.Equal(t, stmt, res.Statement)
	assert.Empty(t, res.Columns)
	assert.Empty(t, res.Rows)
	require.NotNil(t, res.Mutation)
	assert.Equal(t, int64(2), res.Mutation.AffectedRows)
	assert.Equal(t, "INSERT 0 2", res.Mutation.Info)
	assert.Equal(t, int64(2), res.ExecutionStats.RowsAffected)
}
