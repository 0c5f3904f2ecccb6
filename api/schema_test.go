package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseViewMode(t *testing.T) {
	v, err := ParseViewMode(" Editors ")
	require.NoError(t, err)
	assert.Equal(t, ViewEditors, v)

	_, err = ParseViewMode("gallery")
	assert.Error(t, err)

	assert.True(t, DefaultView.Valid())
	assert.False(t, ViewMode("").Valid())
}
