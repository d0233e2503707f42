package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "judge-secret"

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalRole).(string)
		return c.JSON(fiber.Map{"subject": Subject(c), "role": role, "correlation": GetCorrelationID(c)})
	})
	return app
}

func TestJWTProtectedAcceptsValidToken(t *testing.T) {
	token := signed(t, jwt.MapClaims{"sub": "ada", "roles": []string{"Judge"}, "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(HeaderCorrelationID, "corr-1")

	resp, err := protectedApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "corr-1", resp.Header.Get(HeaderCorrelationID))
}

func TestJWTProtectedRejects(t *testing.T) {
	valid := jwt.MapClaims{"sub": "ada", "exp": time.Now().Add(time.Hour).Unix()}
	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"wrong secret":   "Bearer " + signed(t, valid, "other"),
		"expired":        "Bearer " + signed(t, jwt.MapClaims{"sub": "ada", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret),
		"no expiry":      "Bearer " + signed(t, jwt.MapClaims{"sub": "ada"}, testSecret),
		"no subject":     "Bearer " + signed(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, testSecret),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := protectedApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestCorrelationIDGenerated(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		if GetCorrelationID(c) != CorrelationIDFromContext(c.UserContext()) {
			return c.SendStatus(fiber.StatusConflict)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(HeaderCorrelationID))
}
