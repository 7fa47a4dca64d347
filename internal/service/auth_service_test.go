package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teamchat-api/internal/dto"
	"github.com/noah-isme/teamchat-api/internal/middleware"
)

func newTestAuthService(env *testEnv) *authService {
	svc := NewAuthService(env.users, "test-secret", time.Hour, testValidator(), testLogger()).(*authService)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestAuthServiceSignUpAndSignIn(t *testing.T) {
	env := newTestEnv(t)
	svc := newTestAuthService(env)
	ctx := context.Background()

	registered, err := svc.SignUp(ctx, dto.SignUpRequest{Name: "Ada", Email: " Ada@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, "ada@example.com", registered.User.Email)

	userID, err := middleware.ParseUserToken("test-secret", registered.Token)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, userID)

	signedIn, err := svc.SignIn(ctx, dto.SignInRequest{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, signedIn.User.ID)

	_, err = svc.SignIn(ctx, dto.SignInRequest{Email: "ada@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.SignIn(ctx, dto.SignInRequest{Email: "nobody@example.com", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.SignUp(ctx, dto.SignUpRequest{Name: "Ada Again", Email: "ada@example.com", Password: "another-pass"})
	require.ErrorIs(t, err, ErrInvalidState)

	current, err := svc.CurrentUser(ctx, registered.User.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", current.Name)

	missing, err := svc.CurrentUser(ctx, 9999)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestAuthServiceSignUpValidates(t *testing.T) {
	env := newTestEnv(t)
	svc := newTestAuthService(env)

	_, err := svc.SignUp(context.Background(), dto.SignUpRequest{Name: "Ada", Email: "not-an-email", Password: "correct-horse"})
	require.Error(t, err)

	_, err = svc.SignUp(context.Background(), dto.SignUpRequest{Name: "Ada", Email: "ada@example.com", Password: "short"})
	require.Error(t, err)
}
