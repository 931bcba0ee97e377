package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagDecode(t *testing.T) {
	var f Flag
	assert.NoError(t, f.Decode("True"))
	assert.True(t, f.IsSet())
	assert.Equal(t, "True", f.Raw())
	assert.True(t, f.BoolOr(false))
}

func TestFlagUnsetUsesDefault(t *testing.T) {
	var f Flag
	assert.True(t, f.BoolOr(true))
	assert.False(t, f.BoolOr(false))
}

func TestNumberValue(t *testing.T) {
	v, ok := NumberString(" 12.5 ").Value()
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = NumberString("twelve").Value()
	assert.False(t, ok)

	_, ok = Number{}.Value()
	assert.False(t, ok)

	var n Number
	assert.NoError(t, n.Decode("7"))
	v, ok = n.Value()
	assert.True(t, ok)
	assert.Equal(t, float64(7), v)
}
