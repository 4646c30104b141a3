package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreKey(t *testing.T) {
	key, err := StoreKey("orders", true)
	require.NoError(t, err)
	assert.Equal(t, "_dynamic_orders", key)

	key, err = StoreKey("orders", false)
	require.NoError(t, err)
	assert.Equal(t, "orders", key)

	_, err = StoreKey("_dynamic_orders", false)
	assert.True(t, IsConfigurationError(err))

	_, err = StoreKey("", true)
	assert.True(t, IsConfigurationError(err))
}

func TestStoreKey_Normalizes(t *testing.T) {
	composed, err := StoreKey("café", false)
	require.NoError(t, err)
	decomposed, err := StoreKey("café", false)
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestDisplayName(t *testing.T) {
	name, dynamic := DisplayName("_dynamic_orders")
	assert.Equal(t, "orders", name)
	assert.True(t, dynamic)

	name, dynamic = DisplayName("invoice")
	assert.Equal(t, "invoice", name)
	assert.False(t, dynamic)
}
