package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dev, err := New(true)
	require.NoError(t, err)
	assert.NotNil(t, dev)
	assert.True(t, dev.Core().Enabled(-1), "development logger emits debug")

	prod, err := New(false)
	require.NoError(t, err)
	assert.NotNil(t, prod)
	assert.False(t, prod.Core().Enabled(-1), "production logger suppresses debug")
}
