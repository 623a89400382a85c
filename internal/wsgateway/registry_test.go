package wsgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRegistry_AddRemove(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Add(&Connection{ID: "conn-1", UserID: "user-1"})

	retrieved, exists := registry.Get("conn-1")
	require.True(t, exists)
	assert.Equal(t, "conn-1", retrieved.ID)
	assert.Equal(t, 1, registry.Count())

	assert.True(t, registry.Remove("conn-1"))
	assert.False(t, registry.Remove("conn-1"))

	_, exists = registry.Get("conn-1")
	assert.False(t, exists)
	assert.Equal(t, 0, registry.Count())
	assert.Equal(t, 0, registry.CountByUser("user-1"))
}

func TestConnectionRegistry_ByUser(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Add(&Connection{ID: "conn-1", UserID: "user-1"})
	registry.Add(&Connection{ID: "conn-2", UserID: "user-1"})
	registry.Add(&Connection{ID: "conn-3", UserID: "user-2"})

	assert.Len(t, registry.GetByUser("user-1"), 2)
	assert.Len(t, registry.GetByUser("user-2"), 1)
	assert.Empty(t, registry.GetByUser("user-3"))
	assert.Equal(t, 2, registry.CountByUser("user-1"))
	assert.Len(t, registry.GetAll(), 3)

	registry.Remove("conn-1")
	assert.Equal(t, 1, registry.CountByUser("user-1"))
}
