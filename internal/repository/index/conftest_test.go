package index

import (
	"context"

	"github.com/threadmind/answerd/internal/db"
)

// mockStore implements the store consumer interface in memory.
type mockStore struct {
	hashes       map[string]map[string]string
	indexes      map[string]*db.IndexDefinition
	searchResult *db.SearchResult
	searchErr    error
	lastKNN      *db.KNNQuery
	deleted      []string
	count        int
}

func newMockStore() *mockStore {
	return &mockStore{
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	existing, ok := m.hashes[key]
	if !ok {
		existing = make(map[string]string)
		m.hashes[key] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	fields, ok := m.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if _, ok := m.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	m.indexes[def.Name] = def
	return nil
}

func (m *mockStore) IndexExists(_ context.Context, name string) (bool, error) {
	_, ok := m.indexes[name]
	return ok, nil
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastKNN = q
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchResult != nil {
		return m.searchResult, nil
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(_ context.Context, _ string) (int, error) {
	return m.count, nil
}
