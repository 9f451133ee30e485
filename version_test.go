package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionSentinelsAreDistinctPerType(t *testing.T) {
	assert.Equal(t, DataVersion(-1), AnyDataVersion)
	assert.Equal(t, DataVersion(-2), InvalidDataVersion)
	assert.Equal(t, ChildVersion(-1), AnyChildVersion)
	assert.Equal(t, ACLVersion(-1), AnyACLVersion)
	assert.NotEqual(t, int32(AnyDataVersion), int32(0))
}
