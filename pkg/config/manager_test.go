package config

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSection is a test implementation of the Section interface
type mockSection struct {
	id          string
	data        map[string]interface{}
	validateErr error
}

func (m *mockSection) ID() string                                { return m.id }
func (m *mockSection) Title() string                             { return m.id }
func (m *mockSection) Description() string                       { return "" }
func (m *mockSection) Data() map[string]interface{}              { return m.data }
func (m *mockSection) SetData(data map[string]interface{}) error { m.data = data; return nil }
func (m *mockSection) Validate() error                           { return m.validateErr }
func (m *mockSection) Reset()                                    { m.data = make(map[string]interface{}) }

// mockStore is a test implementation of the Store interface
type mockStore struct {
	sections map[string]map[string]interface{}
	loadErr  error
	saveErr  error
	saved    bool
}

func newMockStore() *mockStore {
	return &mockStore{sections: make(map[string]map[string]interface{})}
}

func (m *mockStore) Load() error { return m.loadErr }

func (m *mockStore) Save() error {
	m.saved = m.saveErr == nil
	return m.saveErr
}

func (m *mockStore) GetSection(id string) (map[string]interface{}, error) {
	if data, ok := m.sections[id]; ok {
		return data, nil
	}
	return make(map[string]interface{}), nil
}

func (m *mockStore) SetSection(id string, data map[string]interface{}) error {
	m.sections[id] = data
	return nil
}

func TestManager_RegisterSection(t *testing.T) {
	manager := NewManager(newMockStore())

	require.NoError(t, manager.RegisterSection(&mockSection{id: "first"}))
	require.NoError(t, manager.RegisterSection(&mockSection{id: "second"}))
	assert.Error(t, manager.RegisterSection(&mockSection{id: "first"}), "duplicate id must be rejected")

	sections := manager.GetSections()
	require.Len(t, sections, 2)
	assert.Equal(t, "first", sections[0].ID())
	assert.Equal(t, "second", sections[1].ID())

	_, ok := manager.GetSection("missing")
	assert.False(t, ok)
}

func TestManager_LoadAll(t *testing.T) {
	t.Run("applies store data to sections", func(t *testing.T) {
		store := newMockStore()
		store.sections["test"] = map[string]interface{}{"key": "value"}
		manager := NewManager(store)
		section := &mockSection{id: "test"}
		require.NoError(t, manager.RegisterSection(section))

		require.NoError(t, manager.LoadAll())
		assert.Equal(t, "value", section.data["key"])
	})

	t.Run("propagates store errors", func(t *testing.T) {
		store := newMockStore()
		store.loadErr = errors.New("load error")
		assert.Error(t, NewManager(store).LoadAll())
	})

	t.Run("rejects invalid loaded section", func(t *testing.T) {
		manager := NewManager(newMockStore())
		require.NoError(t, manager.RegisterSection(&mockSection{id: "bad", validateErr: errors.New("nope")}))
		assert.Error(t, manager.LoadAll())
	})
}

func TestManager_SaveAll(t *testing.T) {
	t.Run("saves every section", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		require.NoError(t, manager.RegisterSection(&mockSection{id: "a", data: map[string]interface{}{"k": 1}}))

		require.NoError(t, manager.SaveAll())
		assert.True(t, store.saved)
		assert.Equal(t, 1, store.sections["a"]["k"])
	})

	t.Run("validates before saving", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		require.NoError(t, manager.RegisterSection(&mockSection{id: "a", validateErr: errors.New("invalid")}))

		assert.Error(t, manager.SaveAll())
		assert.False(t, store.saved)
	})
}

func TestManager_ResetAll(t *testing.T) {
	manager := NewManager(newMockStore())
	section := &mockSection{id: "a", data: map[string]interface{}{"k": "v"}}
	require.NoError(t, manager.RegisterSection(section))

	manager.ResetAll()
	assert.Empty(t, section.data)
}

func TestManager_ConcurrentReads(t *testing.T) {
	manager := NewManager(newMockStore())
	require.NoError(t, manager.RegisterSection(&mockSection{id: "test"}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.GetSection("test")
			manager.GetSections()
		}()
	}
	wg.Wait()
}
