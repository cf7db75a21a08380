package services

import (
	"testing"
	"time"

	"liveclass/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.GenerateJoinToken("alice", "ROOM42", domain.RoleStudent)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, domain.Username("alice"), claims.Username)
	assert.Equal(t, domain.RoomCode("ROOM42"), claims.Room)
	assert.Equal(t, domain.RoleStudent, claims.Role)
}

func TestTokenService_TeacherRolePreserved(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.GenerateJoinToken("prof", "ROOM42", domain.RoleTeacher)
	assert.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, domain.RoleTeacher, claims.Role)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("issuer-secret", time.Hour)
	verifier := NewTokenService("other-secret", time.Hour)

	token, err := issuer.GenerateJoinToken("alice", "ROOM42", domain.RoleStudent)
	assert.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := NewTokenService("test-secret", -time.Minute)

	token, err := svc.GenerateJoinToken("alice", "ROOM42", domain.RoleStudent)
	assert.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
