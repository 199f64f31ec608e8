package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	data map[string]interface{}
	save int
}

func (m *memStorage) GetSettings() (map[string]interface{}, error) {
	return m.data, nil
}

func (m *memStorage) SaveSettings(s map[string]interface{}) error {
	m.save++
	m.data = s
	return nil
}

func TestGetRejectsUsersKey(t *testing.T) {
	store := New(&memStorage{}, nil)
	require.NoError(t, store.Load())
	_, err := store.Get("users")
	assert.Error(t, err)
}

func TestGetBeforeLoadRaises(t *testing.T) {
	store := New(&memStorage{}, nil)
	_, err := store.Get("foo")
	assert.Error(t, err)
}

func TestLocalTakesPrecedenceAndIsReadOnly(t *testing.T) {
	store := New(&memStorage{data: map[string]interface{}{}}, map[string]interface{}{"uiPort": 1880})
	require.NoError(t, store.Load())

	v, err := store.Get("uiPort")
	require.NoError(t, err)
	assert.Equal(t, 1880, v)

	err = store.Set("uiPort", 9999)
	assert.Error(t, err)
}

func TestSetOnlyPersistsOnChange(t *testing.T) {
	backing := &memStorage{data: map[string]interface{}{}}
	store := New(backing, nil)
	require.NoError(t, store.Load())

	require.NoError(t, store.Set("theme", "dark"))
	assert.Equal(t, 1, backing.save)

	require.NoError(t, store.Set("theme", "dark"))
	assert.Equal(t, 1, backing.save, "unchanged value must not trigger a second save")

	require.NoError(t, store.Set("theme", "light"))
	assert.Equal(t, 2, backing.save)
}

func TestRegisterNodeSettingsEnforcesPrefix(t *testing.T) {
	store := New(&memStorage{data: map[string]interface{}{}}, nil)
	require.NoError(t, store.Load())

	err := store.RegisterNodeSettings("mqtt-broker", NodeSettingsSpec{
		Defaults: map[string]interface{}{"mqttBrokerTimeout": 30},
	})
	assert.NoError(t, err)

	err = store.RegisterNodeSettings("mqtt-broker", NodeSettingsSpec{
		Defaults: map[string]interface{}{"wrongPrefix": 1},
	})
	assert.Error(t, err)
}

func TestExportNodeSettingsUnionAndOverlay(t *testing.T) {
	store := New(&memStorage{data: map[string]interface{}{}}, map[string]interface{}{
		"httpRequestTimeout": 5000,
	})
	require.NoError(t, store.Load())
	require.NoError(t, store.RegisterNodeSettings("http-request", NodeSettingsSpec{
		Defaults:   map[string]interface{}{"httpRequestTimeout": 60000},
		Exportable: map[string]bool{"httpRequestTimeout": true},
	}))
	require.NoError(t, store.RegisterNodeSettings("file", NodeSettingsSpec{
		Defaults:   map[string]interface{}{"fileWorkingDirectory": "."},
		Exportable: map[string]bool{"fileWorkingDirectory": false},
	}))

	out := store.ExportNodeSettings()
	assert.Equal(t, 5000, out["httpRequestTimeout"], "local value must overlay the node default")
	_, present := out["fileWorkingDirectory"]
	assert.False(t, present, "non-exportable key must be excluded")
}

func TestUserSettingsRoundTrip(t *testing.T) {
	store := New(&memStorage{data: map[string]interface{}{}}, nil)
	require.NoError(t, store.Load())

	require.NoError(t, store.SetUserSettings("alice", "theme", "dark"))
	v, err := store.GetUserSettings("alice", "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	v2, err := store.GetUserSettings("bob", "theme")
	require.NoError(t, err)
	assert.Nil(t, v2)
}
