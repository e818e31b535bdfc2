package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Operations(t *testing.T) {
	t.Parallel()

	a := NewSet("camera", "location", "contacts")
	b := NewSet("location", "microphone")

	assert.Equal(t, []string{"location"}, a.Intersect(b).Sorted())
	assert.Equal(t, []string{"camera", "contacts"}, a.Difference(b).Sorted())

	c := a.Clone()
	c.Remove("camera")
	assert.True(t, a.Has("camera"))
	assert.False(t, c.Has("camera"))
	assert.Equal(t, 2, c.Len())
}

func TestSet_SortedEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewSet().Sorted())
	assert.NotNil(t, NewSet().Sorted())
}
