package provider

import (
	"errors"
	"testing"

	"fundbot/pkg/provider/core"
	"fundbot/pkg/provider/yahoo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderManager_RegisterAndGet(t *testing.T) {
	m := NewProviderManager()
	y := yahoo.NewProvider(yahoo.DefaultConfig(), nil)

	require.NoError(t, m.Register("yahoo", y))
	assert.Error(t, m.Register("", y))
	assert.Error(t, m.Register("nil", nil))

	got, err := m.Get("yahoo")
	require.NoError(t, err)
	assert.Equal(t, "yahoo", got.Name())
	assert.Equal(t, []string{"yahoo"}, m.Names())

	_, err = m.Get("fred")
	assert.True(t, errors.Is(err, core.ErrProviderNotFound))
	assert.NoError(t, m.Close())
}
