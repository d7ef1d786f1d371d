package sessions

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/khanghh/donorshield/internal/common"
)

const (
	sessionContextKey = "session"
	sessionDataKey    = "data"
)

func init() {
	gob.Register(SessionData{})
}

type SessionData struct {
	IP            string    // client ip address
	LastSeen      time.Time // last request time
	CSRFToken     string    // double submit token
	CSRFExpiresAt time.Time // csrf token expire time
	MFAVerifiedAt time.Time // last successful TOTP verification
}

// IsMFAVerified reports whether a TOTP code was verified in this session
// within maxAge.
func (s *SessionData) IsMFAVerified(maxAge time.Duration) bool {
	return !s.MFAVerifiedAt.IsZero() && time.Since(s.MFAVerifiedAt) < maxAge
}

type Session struct {
	*session.Session
	SessionData
}

func (s *Session) Save(data ...SessionData) {
	if len(data) > 0 {
		s.SessionData = data[0]
	}
	s.Set(sessionDataKey, s.SessionData)
}

// Reset moves the session to a fresh id, dropping the old one from storage,
// and starts over with data.
func (s *Session) Reset(data ...SessionData) error {
	if err := s.Session.Reset(); err != nil {
		return err
	}
	s.SessionData = SessionData{}
	if len(data) > 0 {
		s.SessionData = data[0]
	}
	s.Set(sessionDataKey, s.SessionData)
	return nil
}

func (s *Session) Destroy() error {
	s.SessionData = SessionData{}
	return s.Session.Destroy()
}

func newSession(sess *session.Session) *Session {
	data, _ := sess.Get(sessionDataKey).(SessionData)
	return &Session{
		Session:     sess,
		SessionData: data,
	}
}

func generateSessionID() string {
	id, err := common.RandomHex(16)
	if err != nil {
		slog.Error("Could not generate session id", "error", err)
		return ""
	}
	return id
}

// Get returns the session of the request. The sessions middleware must run
// before any handler calling it.
func Get(ctx *fiber.Ctx) *Session {
	return ctx.Locals(sessionContextKey).(*Session)
}

// Destroy removes the session of the request and expires its cookie.
func Destroy(ctx *fiber.Ctx) error {
	return Get(ctx).Destroy()
}

type Config struct {
	Storage        fiber.Storage
	SessionMaxAge  time.Duration
	CookieSecure   bool
	CookieHttpOnly bool
	CookieName     string
}

func New(config Config) fiber.Handler {
	store := session.New(session.Config{
		Storage:        config.Storage,
		Expiration:     config.SessionMaxAge,
		CookieSecure:   config.CookieSecure,
		CookieHTTPOnly: config.CookieHttpOnly,
		CookieSameSite: "Strict",
		KeyLookup:      fmt.Sprintf("cookie:%s", config.CookieName),
		KeyGenerator:   generateSessionID,
	})

	return func(ctx *fiber.Ctx) error {
		sess, err := store.Get(ctx)
		if err != nil {
			return err
		}

		session := newSession(sess)
		ctx.Locals(sessionContextKey, session)
		if err := ctx.Next(); err != nil {
			return err
		}

		if len(session.Keys()) > 0 {
			if data := session.SessionData; data != (SessionData{}) {
				data.IP = ctx.IP()
				data.LastSeen = time.Now()
				sess.Set(sessionDataKey, data)
			}
			return sess.Save()
		}
		return nil
	}
}
