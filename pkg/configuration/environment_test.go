package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration_Defaults(t *testing.T) {
	c := &Configuration{}
	require.NoError(t, c.load(nil))

	assert.Equal(t, "accessdesk", c.Database.Name)
	assert.False(t, c.Database.Enabled)
	assert.Equal(t, "maria", c.Access.FallbackApproverID)
	assert.True(t, c.Access.LeadAdminNeedsApproval)
	assert.Equal(t, 280, c.Access.MaxMessageLength)
	assert.Equal(t, 30*time.Second, c.Access.EscalationAutoResolve)
	assert.NotNil(t, c.Logger())
}

func TestConfiguration_EnvOverride(t *testing.T) {
	t.Setenv("ACCESS_FALLBACK_APPROVER", "root")
	t.Setenv("ACCESS_MAX_MESSAGE_LENGTH", "120")
	t.Setenv("PORT", "9999")

	c := &Configuration{}
	require.NoError(t, c.load(nil))

	assert.Equal(t, "root", c.Access.FallbackApproverID)
	assert.Equal(t, 120, c.Access.MaxMessageLength)
	assert.Equal(t, "localhost:9999", c.ListenAddr())
}

func TestAccessOptions_Validate(t *testing.T) {
	t.Run("rejects empty fallback approver", func(t *testing.T) {
		opts := AccessOptions{MaxMessageLength: 10}
		assert.Error(t, opts.Validate())
	})
	t.Run("rejects non-positive message length", func(t *testing.T) {
		opts := AccessOptions{FallbackApproverID: "maria"}
		assert.Error(t, opts.Validate())
	})
	t.Run("rejects negative auto-resolve", func(t *testing.T) {
		opts := AccessOptions{
			FallbackApproverID:    "maria",
			MaxMessageLength:      10,
			EscalationAutoResolve: -time.Second,
		}
		assert.Error(t, opts.Validate())
	})
}
