package set_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Stefan-Mada/bf-compiler/compiler/set"
)

func TestBitmapSetAndIsSet(t *testing.T) {
	b := set.MakeBitmap(8)

	assert.False(t, b.IsSet(3))

	b.Set(3)
	assert.True(t, b.IsSet(3))
	assert.False(t, b.IsSet(2))
	assert.False(t, b.IsSet(4))
}

func TestBitmapGrowsPastInitialLen(t *testing.T) {
	b := set.MakeBitmap(1)

	b.Set(200)
	assert.True(t, b.IsSet(200))
	assert.False(t, b.IsSet(199))
}

func TestBitmapIsSetOutOfRangeIsFalse(t *testing.T) {
	b := set.MakeBitmap(8)

	assert.False(t, b.IsSet(1000))
}
