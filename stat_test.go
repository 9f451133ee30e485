package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatEphemeral(t *testing.T) {
	assert.False(t, Stat{}.Ephemeral())
	assert.True(t, Stat{EphemeralOwner: 7}.Ephemeral())
}
