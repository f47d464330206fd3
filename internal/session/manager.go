package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"querydesk/internal/crypto"
)

const CookieName = "querydesk_session"

type Manager struct {
	store  *Store
	sealer *crypto.Sealer
	secure bool
}

func NewManager(store *Store, sealer *crypto.Sealer, secure bool) *Manager {
	return &Manager{store: store, sealer: sealer, secure: secure}
}

// Issue starts a session for userID and sets the sealed cookie.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, userID int64) (Session, error) {
	sess, err := m.store.Create(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	token, err := m.sealer.Seal(sess.ID)
	if err != nil {
		_ = m.store.Delete(ctx, sess.ID)
		return Session{}, fmt.Errorf("seal session id: %w", err)
	}
	m.setCookie(w, token, int(m.store.TTL().Seconds()))
	return sess, nil
}

// Current returns the session behind the request cookie, or nil. Forged or
// stale cookies are treated as absent; only store failures are errors. A
// cookie sealed under a rotated-out key is re-sealed under the current one.
func (m *Manager) Current(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	token, id, ok := m.sessionID(r)
	if !ok {
		return nil, nil
	}
	sess, err := m.store.Get(ctx, id)
	if err != nil || sess == nil {
		return sess, err
	}
	if !m.sealer.IsCurrent(token) {
		resealed, err := m.sealer.Reseal(token)
		if err != nil {
			return nil, fmt.Errorf("reseal session cookie: %w", err)
		}
		m.setCookie(w, resealed, int(m.store.TTL().Seconds()))
	}
	return sess, nil
}

func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if _, id, ok := m.sessionID(r); ok {
		err = m.store.Delete(ctx, id)
	}
	m.setCookie(w, "", -1)
	return err
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) sessionID(r *http.Request) (token, id string, ok bool) {
	c, err := r.Cookie(CookieName)
	if errors.Is(err, http.ErrNoCookie) || c == nil || c.Value == "" {
		return "", "", false
	}
	id, err = m.sealer.Open(c.Value)
	if err != nil || id == "" {
		return "", "", false
	}
	return c.Value, id, true
}
