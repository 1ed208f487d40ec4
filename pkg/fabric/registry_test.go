// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package fabric

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockBackend is a mock implementation of ExecutionBackend for testing
type mockBackend struct {
	name   string
	closed bool
}

func (m *mockBackend) Name() string { return m.name }
func (m *mockBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	return &QueryResult{Statement: query}, nil
}
func (m *mockBackend) ExecuteBatch(ctx context.Context, sql string) (*BatchResult, error) {
	return &BatchResult{}, nil
}
func (m *mockBackend) Ping(ctx context.Context) error { return nil }
func (m *mockBackend) Close() error {
	m.closed = true
	return nil
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Mock", func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
		return &mockBackend{name: cfg.Name}, nil
	})

	_, ok := reg.Get("mock")
	assert.True(t, ok, "type names are case-insensitive")

	b, err := reg.Open(context.Background(), SourceConfig{Name: "m", Type: "MOCK"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "m", b.Name())
}

func TestRegistry_OpenUnknownType(t *testing.T) {
	_, err := NewRegistry().Open(context.Background(), SourceConfig{Name: "x", Type: "oracle"}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDefaultRegistry_Types(t *testing.T) {
	assert.Equal(t, []string{"mysql", "pgx", "postgres", "sqlite"}, NewDefaultRegistry().List())
}

func TestCatalog_ResolveAndBackend(t *testing.T) {
	reg := NewRegistry()
	opens := 0
	var created *mockBackend
	reg.Register("sqlite", func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
		opens++
		created = &mockBackend{name: cfg.Name}
		return created, nil
	})

	catalog, err := NewCatalogWithRegistry(reg, []SourceConfig{
		{Name: "sales", Type: "SQLite", DSN: "sales.db"},
	}, nil)
	require.NoError(t, err)

	src, err := catalog.Resolve("sales")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", src.Type)

	_, err = catalog.Resolve("missing")
	assert.ErrorIs(t, err, ErrUnknownSource)

	first, err := catalog.Backend(context.Background(), "sales")
	require.NoError(t, err)
	second, err := catalog.Backend(context.Background(), "sales")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, opens)
	require.IsType(t, &InstrumentedBackend{}, first)
	assert.Same(t, created, first.(*InstrumentedBackend).Unwrap())

	_, err = catalog.Backend(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownSource)

	assert.Equal(t, []string{"sales"}, catalog.Names())
	require.NoError(t, catalog.Close())
	assert.True(t, created.closed)
}

func TestCatalog_RejectsInvalidSources(t *testing.T) {
	_, err := NewCatalog([]SourceConfig{{Name: "a", Type: "sqlite"}}, nil)
	require.Error(t, err)

	_, err = NewCatalog([]SourceConfig{
		{Name: "a", Type: "sqlite", DSN: "a.db"},
		{Name: "a", Type: "sqlite", DSN: "b.db"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined twice")
}

func TestCatalog_CloseJoinsErrors(t *testing.T) {
	reg := NewRegistry()
	reg.Register("sqlite", func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
		return &failingCloseBackend{mockBackend{name: cfg.Name}}, nil
	})
	catalog, err := NewCatalogWithRegistry(reg, []SourceConfig{{Name: "a", Type: "sqlite", DSN: "a.db"}}, nil)
	require.NoError(t, err)
	_, err = catalog.Backend(context.Background(), "a")
	require.NoError(t, err)

	err = catalog.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close a")
}

type failingCloseBackend struct{ mockBackend }

func (f *failingCloseBackend) Close() error { return errors.New("boom") }

func TestCatalog_ConcurrentBackendOpensOnce(t *testing.T) {
	catalog, err := NewCatalog([]SourceConfig{
		{Name: "db", Type: "sqlite", DSN: filepath.Join(t.TempDir(), "db.sqlite")},
	}, nil)
	require.NoError(t, err)
	defer catalog.Close()

	var wg sync.WaitGroup
	backends := make([]ExecutionBackend, 8)
	for i := range backends {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := catalog.Backend(context.Background(), "db")
			assert.NoError(t, err)
			backends[i] = b
		}(i)
	}
	wg.Wait()
	for _, b := range backends[1:] {
		assert.Same(t, backends[0], b)
	}
}

func TestCatalog_Replace(t *testing.T) {
	reg := NewRegistry()
	created := make(map[string]*mockBackend)
	reg.Register("sqlite", func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
		b := &mockBackend{name: cfg.Name}
		created[cfg.DSN] = b
		return b, nil
	})
	catalog, err := NewCatalogWithRegistry(reg, []SourceConfig{
		{Name: "keep", Type: "sqlite", DSN: "keep.db"},
		{Name: "change", Type: "sqlite", DSN: "old.db"},
		{Name: "drop", Type: "sqlite", DSN: "drop.db"},
	}, nil)
	require.NoError(t, err)
	for _, name := range []string{"keep", "change", "drop"} {
		_, err := catalog.Backend(context.Background(), name)
		require.NoError(t, err)
	}
	kept, err := catalog.Backend(context.Background(), "keep")
	require.NoError(t, err)

	require.NoError(t, catalog.Replace([]SourceConfig{
		{Name: "keep", Type: "sqlite", DSN: "keep.db"},
		{Name: "change", Type: "sqlite", DSN: "new.db"},
		{Name: "added", Type: "sqlite", DSN: "added.db"},
	}))

	assert.Equal(t, []string{"added", "change", "keep"}, catalog.Names())
	assert.False(t, created["keep.db"].closed)
	assert.True(t, created["old.db"].closed)
	assert.True(t, created["drop.db"].closed)

	again, err := catalog.Backend(context.Background(), "keep")
	require.NoError(t, err)
	assert.Same(t, kept, again)

	src, err := catalog.Resolve("change")
	require.NoError(t, err)
	assert.Equal(t, "new.db", src.DSN)
	_, err = catalog.Resolve("drop")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestCatalog_ReplaceInvalidKeepsState(t *testing.T) {
	catalog, err := NewCatalogWithRegistry(NewRegistry(), []SourceConfig{
		{Name: "a", Type: "sqlite", DSN: "a.db"},
	}, nil)
	require.NoError(t, err)

	err = catalog.Replace([]SourceConfig{{Name: "b", Type: "sqlite"}})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, catalog.Names())
}
