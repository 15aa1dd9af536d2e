package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_IsActive(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		token  RefreshToken
		active bool
	}{
		{name: "fresh", token: RefreshToken{ExpiresAt: now.Add(time.Hour)}, active: true},
		{name: "expired", token: RefreshToken{ExpiresAt: now.Add(-time.Second)}, active: false},
		{name: "expires exactly now", token: RefreshToken{ExpiresAt: now}, active: false},
		{name: "revoked", token: RefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}, active: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.token.IsActive(now))
		})
	}
}

func TestRoleAndGenderValid(t *testing.T) {
	assert.True(t, RoleLabScientist.Valid())
	assert.False(t, Role("janitor").Valid())
	assert.True(t, GenderOther.Valid())
	assert.False(t, Gender("").Valid())
}
