package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/pkg/util"
)

func newAuthEnv() (*memStore, *AuthService) {
	store := newMemStore()
	tokens := auth.NewTokenManager("test-secret", 60)
	return store, NewAuthService(&fakeUserRepo{store: store}, tokens, 4)
}

func seedUser(t *testing.T, store *memStore, username, password string) *domain.User {
	t.Helper()
	hashed, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	return store.addUser(domain.User{
		Username:     username,
		EmployeeID:   username,
		Role:         domain.RoleTechnician,
		PasswordHash: hashed,
	})
}

func TestLoginIssuesToken(t *testing.T) {
	store, svc := newAuthEnv()
	user := seedUser(t, store, "t1", "orig-pass-123")

	result, err := svc.Login(context.Background(), "t1", "orig-pass-123")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)

	_, err = svc.Login(context.Background(), "t1", "wrong")
	assert.True(t, util.IsCode(err, "UNAUTHORIZED"))
}

func TestChangePasswordRotatesHash(t *testing.T) {
	store, svc := newAuthEnv()
	user := seedUser(t, store, "t1", "orig-pass-123")

	err := svc.ChangePassword(context.Background(), user.ID, "orig-pass-123", "next-pass-456")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "t1", "next-pass-456")
	assert.NoError(t, err)
	_, err = svc.Login(context.Background(), "t1", "orig-pass-123")
	assert.True(t, util.IsCode(err, "UNAUTHORIZED"))
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	store, svc := newAuthEnv()
	user := seedUser(t, store, "t1", "orig-pass-123")

	err := svc.ChangePassword(context.Background(), user.ID, "wrong", "next-pass-456")
	assert.True(t, util.IsCode(err, "UNAUTHORIZED"))
}

func TestChangePasswordRejectsShortPassword(t *testing.T) {
	store, svc := newAuthEnv()
	user := seedUser(t, store, "t1", "orig-pass-123")

	err := svc.ChangePassword(context.Background(), user.ID, "orig-pass-123", "short")
	assert.True(t, util.IsCode(err, "VALIDATION_FAILED"))
}
