package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	log, flush, err := New(Options{Level: "debug", Development: true})
	require.NoError(t, err)
	defer flush()
	assert.True(t, log.V(1).Enabled())

	log, flush, err = New(Options{})
	require.NoError(t, err)
	defer flush()
	assert.True(t, log.Enabled())
	assert.False(t, log.V(1).Enabled())
}

func TestNewBadLevel(t *testing.T) {
	_, flush, err := New(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `log level "loud"`)
	flush()
}
