package csrf

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/khanghh/donorshield/internal/middlewares/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failureRecorder struct {
	mu        sync.Mutex
	endpoints []string
}

func (r *failureRecorder) LogInvalidCSRFToken(ctx context.Context, identifier, endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = append(r.endpoints, endpoint)
}

func TestValidateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	assert.False(t, ValidateToken("", token))
	assert.False(t, ValidateToken(token, ""))
	assert.False(t, ValidateToken("", ""))
	assert.False(t, ValidateToken(token, token[:63]))
	assert.False(t, ValidateToken(token, strings.Repeat("0", 64)))
	assert.True(t, ValidateToken(token, token))
}

func newTestApp(recorder *failureRecorder) *fiber.App {
	app := fiber.New()
	app.Use(sessions.New(sessions.Config{
		Storage:       memory.New(),
		SessionMaxAge: time.Hour,
		CookieName:    "sid",
	}))
	app.Use(New(Config{
		ExcludePaths: []string{"/internal/*"},
		Logger:       recorder,
	}))
	app.Get("/csrf", func(ctx *fiber.Ctx) error {
		token, err := Get(sessions.Get(ctx))
		if err != nil {
			return err
		}
		return ctx.SendString(token)
	})
	ok := func(ctx *fiber.Ctx) error { return ctx.SendString("ok") }
	app.Get("/donations", ok)
	app.Post("/donations", ok)
	app.Delete("/donations", ok)
	app.Post("/internal/events", ok)
	return app
}

func issueToken(t *testing.T, app *fiber.App) (string, []*http.Cookie) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/csrf", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Cookies())
	return string(body), resp.Cookies()
}

func TestMiddleware(t *testing.T) {
	recorder := &failureRecorder{}
	app := newTestApp(recorder)
	token, cookies := issueToken(t, app)

	send := func(method, token string, withCookies bool) int {
		req := httptest.NewRequest(method, "/donations", nil)
		if token != "" {
			req.Header.Set(HeaderName, token)
		}
		if withCookies {
			for _, c := range cookies {
				req.AddCookie(c)
			}
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send(fiber.MethodGet, "", false))
	assert.Equal(t, fiber.StatusForbidden, send(fiber.MethodPost, "", false))
	assert.Equal(t, fiber.StatusForbidden, send(fiber.MethodPost, token, false))
	assert.Equal(t, fiber.StatusForbidden, send(fiber.MethodPost, "", true))
	assert.Equal(t, fiber.StatusForbidden, send(fiber.MethodDelete, strings.Repeat("a", 64), true))
	assert.Equal(t, fiber.StatusOK, send(fiber.MethodPost, token, true))
	assert.Equal(t, fiber.StatusOK, send(fiber.MethodDelete, token, true))

	assert.Len(t, recorder.endpoints, 4)
	assert.Equal(t, "/donations", recorder.endpoints[0])
}

func TestMiddleware_FormField(t *testing.T) {
	app := newTestApp(&failureRecorder{})
	token, cookies := issueToken(t, app)

	form := url.Values{FormField: {token}}
	req := httptest.NewRequest(fiber.MethodPost, "/donations", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMiddleware_ExcludePaths(t *testing.T) {
	recorder := &failureRecorder{}
	app := newTestApp(recorder)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/internal/events", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, recorder.endpoints)
}

func TestGet_ReusesToken(t *testing.T) {
	app := newTestApp(&failureRecorder{})
	token, cookies := issueToken(t, app)

	req := httptest.NewRequest(fiber.MethodGet, "/csrf", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, token, string(body))
}
