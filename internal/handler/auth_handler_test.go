package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamchat-api/internal/dto"
)

func TestAuthHandlerSignUpSignInAndMe(t *testing.T) {
	app := setupApp(t)

	status, body := app.do(t, http.MethodPost, "/api/v1/auth/sign-up", 0, dto.SignUpRequest{
		Name: "Grace", Email: "grace@example.com", Password: "hopper-1906",
	})
	require.Equal(t, http.StatusCreated, status, body.Message)
	registered := decode[dto.AuthResponse](t, body.Data)
	require.NotEmpty(t, registered.Token)

	status, body = app.do(t, http.MethodPost, "/api/v1/auth/sign-in", 0, dto.SignInRequest{
		Email: "grace@example.com", Password: "hopper-1906",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, registered.User.ID, decode[dto.AuthResponse](t, body.Data).User.ID)

	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/sign-in", 0, dto.SignInRequest{
		Email: "grace@example.com", Password: "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/sign-up", 0, dto.SignUpRequest{
		Name: "Grace", Email: "grace@example.com", Password: "hopper-1906",
	})
	require.Equal(t, http.StatusConflict, status)

	status, body = app.do(t, http.MethodGet, "/api/v1/users/me", registered.User.ID, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Grace", decode[dto.UserResponse](t, body.Data).Name)
}

func TestAuthHandlerValidationDetails(t *testing.T) {
	app := setupApp(t)

	status, body := app.do(t, http.MethodPost, "/api/v1/auth/sign-up", 0, dto.SignUpRequest{Name: "Grace", Email: "nope", Password: "x"})
	require.Equal(t, http.StatusBadRequest, status)
	require.False(t, body.Success)
	require.Equal(t, "validation failed", body.Message)

	details := decode[[]map[string]string](t, body.Details)
	fields := make([]string, 0, len(details))
	for _, detail := range details {
		fields = append(fields, detail["field"])
	}
	require.ElementsMatch(t, []string{"Email", "Password"}, fields)
}
