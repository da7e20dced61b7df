package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Run("removes sensitive keys regardless of case", func(t *testing.T) {
		in := map[string]any{
			"Password":      "hunter2",
			"TOKEN":         "abc",
			"secret":        "s",
			"Api_Key":       "k",
			"private_key":   "pk",
			"session_token": "st",
			"jwt":           "j",
			"Authorization": "Bearer x",
			"cookie":        "c",
			"vm":            "web-1",
			"attempts":      3,
		}

		out := Sanitize(in)

		assert.Equal(t, map[string]any{"vm": "web-1", "attempts": 3}, out)
	})

	t.Run("does not modify the input", func(t *testing.T) {
		in := map[string]any{"password": "x", "keep": true}

		_ = Sanitize(in)

		assert.Len(t, in, 2)
	})

	t.Run("keys that only contain a sensitive word are kept", func(t *testing.T) {
		out := Sanitize(map[string]any{"password_changed": true, "token_count": 2})
		assert.Len(t, out, 2)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Sanitize(nil))
	})

	t.Run("idempotent", func(t *testing.T) {
		in := map[string]any{"jwt": "x", "a": 1, "B": "two"}
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once))
	})
}
