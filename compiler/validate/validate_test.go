package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Stefan-Mada/bf-compiler/compiler/validate"
)

func TestBracketsBalanced(t *testing.T) {
	assert.True(t, validate.Brackets([]byte("++[->+<]")))
	assert.True(t, validate.Brackets([]byte("[[-]>]")))
	assert.True(t, validate.Brackets([]byte("no brackets here")))
	assert.True(t, validate.Brackets(nil))
}

func TestBracketsUnbalanced(t *testing.T) {
	assert.False(t, validate.Brackets([]byte("[+")))
	assert.False(t, validate.Brackets([]byte("+]")))
	assert.False(t, validate.Brackets([]byte("[[-]")))
	assert.False(t, validate.Brackets([]byte("][")))
}
