package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/AureliusIvan/threads-scheduler/configs"
	"github.com/AureliusIvan/threads-scheduler/internal/transfer"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config.Config{
	SecretKey:  "0123456789abcdef0123456789abcdef",
	CookieName: "session",
	CronSecret: "cron-secret",
}

func newProtectedApp() *fiber.App {
	m := NewAuthMiddleware(testConfig)
	app := fiber.New()
	app.Get("/me", m.AuthMiddleware(), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(uuid.UUID)
		return c.SendString(userID.String())
	})
	app.Post("/cron", m.CronSecret(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func signed(t *testing.T, secret, subject string, d time.Duration) string {
	t.Helper()
	claims := transfer.CustomClaims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(d)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthMiddlewareBearer(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, testConfig.SecretKey, userID.String(), time.Hour))

	resp, err := newProtectedApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), string(body))
}

func TestAuthMiddlewareCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: signed(t, testConfig.SecretKey, uuid.NewString(), time.Hour)})

	resp, err := newProtectedApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"other secret", signed(t, "fedcba9876543210fedcba9876543210", uuid.NewString(), time.Hour)},
		{"expired", signed(t, testConfig.SecretKey, uuid.NewString(), -time.Minute)},
		{"subject not a uuid", signed(t, testConfig.SecretKey, "user-42", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := newProtectedApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuthMiddlewareClearsBadCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "stale"})

	resp, err := newProtectedApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "session" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestCronSecret(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer cron-secret", fiber.StatusOK},
		{"wrong", "Bearer nope", fiber.StatusUnauthorized},
		{"missing", "", fiber.StatusUnauthorized},
		{"no scheme", "cron-secret", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cron", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := newProtectedApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCronSecretDisabledWhenEmpty(t *testing.T) {
	cfg := testConfig
	cfg.CronSecret = ""
	app := fiber.New()
	app.Post("/cron", NewAuthMiddleware(cfg).CronSecret(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/cron", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
