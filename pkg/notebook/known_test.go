package notebook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnownSet(t *testing.T) {
	set := NewKnownSet("a", "b", "a")
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("a"))
	assert.False(t, set.Contains("c"))

	clone := set.Clone()
	clone.Add("c")
	assert.True(t, clone.Contains("c"))
	assert.False(t, set.Contains("c"))
}
