package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Terminal(t *testing.T) {
	terminal := []Status{StatusDeclined, StatusBusy, StatusUnreachable, StatusEnded}
	for _, st := range terminal {
		assert.True(t, st.Terminal(), "%s must be terminal", st)
	}

	live := []Status{StatusIdle, StatusCalling, StatusRinging, StatusConnecting, StatusConnected}
	for _, st := range live {
		assert.False(t, st.Terminal(), "%s must not be terminal", st)
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "ringing", StatusRinging.String())
	assert.Equal(t, "unreachable", StatusUnreachable.String())
	assert.Equal(t, "unknown", Status(99).String())
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "caller", RoleCaller.String())
	assert.Equal(t, "callee", RoleCallee.String())
}
