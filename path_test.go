package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathValidate(t *testing.T) {
	cases := []struct {
		path  Path
		valid bool
	}{
		{"/", true},
		{"/a", true},
		{"/a/b", true},
		{"", false},
		{"a/b", false},
		{"/a/", false},
		{"/a//b", false},
		{"/caf\xc3\xa9", false},
	}
	for _, c := range cases {
		err := c.path.Validate()
		if c.valid {
			assert.NoErrorf(t, err, "path %q should be valid", c.path)
		} else {
			assert.Errorf(t, err, "path %q should be invalid", c.path)
		}
	}
}

func TestPathParent(t *testing.T) {
	_, ok := RootPath.Parent()
	assert.False(t, ok)

	parent, ok := Path("/a").Parent()
	require.True(t, ok)
	assert.Equal(t, RootPath, parent)

	parent, ok = Path("/a/b").Parent()
	require.True(t, ok)
	assert.Equal(t, Path("/a"), parent)
}

func TestPathBaseAndJoin(t *testing.T) {
	assert.Equal(t, "b", Path("/a/b").Base())
	assert.Equal(t, "a", Path("/a").Base())

	assert.Equal(t, Path("/a"), RootPath.Join("a"))
	assert.Equal(t, Path("/a/b"), Path("/a").Join("b"))
}
