package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"igrelay/pkg/auth"
	"igrelay/pkg/config"
)

func TestApplyStoredSession(t *testing.T) {
	stored := &auth.Account{
		Username:  "secondary",
		SessionID: "stored-session",
		CSRFToken: "stored-csrf",
		DSUserID:  "2",
	}
	fromEnv := func() config.InstagramConfig {
		return config.InstagramConfig{
			Username:  "primary",
			SessionID: "env-session",
			CSRFToken: "env-csrf",
			DSUserID:  "1",
			RUR:       "env-rur",
			MID:       "env-mid",
		}
	}

	t.Run("explicit account replaces every cookie", func(t *testing.T) {
		ig := fromEnv()
		applyStoredSession(&ig, stored, true)

		assert.Equal(t, "secondary", ig.Username)
		assert.Equal(t, "stored-session", ig.SessionID)
		assert.Equal(t, "stored-csrf", ig.CSRFToken)
		assert.Equal(t, "2", ig.DSUserID)
		assert.Empty(t, ig.RUR)
		assert.Empty(t, ig.MID)
	})

	t.Run("default account only fills gaps", func(t *testing.T) {
		ig := fromEnv()
		ig.RUR = ""
		applyStoredSession(&ig, stored, false)

		assert.Equal(t, "env-session", ig.SessionID)
		assert.Equal(t, "1", ig.DSUserID)
		assert.Empty(t, ig.RUR)
		assert.Equal(t, "env-mid", ig.MID)
	})
}
