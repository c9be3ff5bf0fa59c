package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoleFrame(t *testing.T) {
	t.Run("publisher", func(t *testing.T) {
		f, err := DecodeRoleFrame([]byte(`{"type":"role","role":"publisher"}`))
		require.NoError(t, err)
		assert.Equal(t, RolePublisher, f.Role)
	})

	t.Run("subscriber", func(t *testing.T) {
		f, err := DecodeRoleFrame([]byte(`{"type":"role","role":"subscriber"}`))
		require.NoError(t, err)
		assert.Equal(t, RoleSubscriber, f.Role)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := DecodeRoleFrame([]byte(`{"type":"role","role":"director"}`))
		assert.Error(t, err)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := DecodeRoleFrame([]byte(`{"type":"chat","role":"publisher"}`))
		assert.Error(t, err)
	})

	t.Run("rejects non-JSON", func(t *testing.T) {
		_, err := DecodeRoleFrame([]byte(`not json`))
		assert.Error(t, err)
	})

	t.Run("rejects empty object", func(t *testing.T) {
		_, err := DecodeRoleFrame([]byte(`{}`))
		assert.Error(t, err)
	})
}
