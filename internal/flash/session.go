package flash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CookieName = "gallery_session"
	contextKey = "flash_session"
)

// Flasher queues short-lived notices for the next rendered page of a browser session.
// The session id lives in a cookie signed with the application secret.
type Flasher struct {
	store  Store
	secret []byte
}

func NewFlasher(store Store, secret string) *Flasher {
	return &Flasher{
		store:  store,
		secret: []byte(secret),
	}
}

// Middleware makes sure every request carries a valid session id.
func (f *Flasher) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			session, ok := f.sessionFromCookie(ctx.Request())
			if !ok {
				session = uuid.NewString()
				ctx.SetCookie(&http.Cookie{
					Name:     CookieName,
					Value:    f.sign(session),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx.Set(contextKey, session)
			return next(ctx)
		}
	}
}

// Add queues message for the session of ctx. Failures are logged, a lost notice is not fatal.
func (f *Flasher) Add(ctx echo.Context, message string) {
	session, ok := ctx.Get(contextKey).(string)
	if !ok {
		slog.Warn("flash without session", "message", message)
		return
	}
	if err := f.store.Push(ctx.Request().Context(), session, message); err != nil {
		slog.Error("failed to store flash message", "error", err, "message", message)
	}
}

// Pop returns and clears the queued messages of the session of ctx.
func (f *Flasher) Pop(ctx echo.Context) []string {
	session, ok := ctx.Get(contextKey).(string)
	if !ok {
		return nil
	}
	messages, err := f.store.Pop(ctx.Request().Context(), session)
	if err != nil {
		slog.Error("failed to load flash messages", "error", err)
		return nil
	}
	return messages
}

func (f *Flasher) sessionFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return f.verify(cookie.Value)
}

func (f *Flasher) sign(session string) string {
	return session + "." + base64.RawURLEncoding.EncodeToString(f.mac(session))
}

func (f *Flasher) verify(value string) (string, bool) {
	session, signature, found := strings.Cut(value, ".")
	if !found {
		return "", false
	}
	if _, err := uuid.Parse(session); err != nil {
		return "", false
	}
	expected, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(expected, f.mac(session)) {
		return "", false
	}
	return session, true
}

func (f *Flasher) mac(session string) []byte {
	h := hmac.New(sha256.New, f.secret)
	h.Write([]byte(session))
	return h.Sum(nil)
}
