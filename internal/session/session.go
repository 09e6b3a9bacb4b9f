// Package session ties carts to browser sessions. The cookie carries
// only an opaque session ID; cart contents live in process memory and
// die with the session. Nothing here is persisted.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ecoshop/ecoshop-go/internal/cart"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	cookieName = "ecoshop_session"
	sidKey     = "sid"
)

type record struct {
	cart     *cart.Cart
	lastSeen time.Time
}

// Manager hands out the cart belonging to the current request's session,
// creating an empty one on first access.
type Manager struct {
	store   sessions.Store
	ttl     time.Duration
	metrics *metrics.AppMetrics

	mu    sync.Mutex
	carts map[string]*record
}

// NewManager creates a session manager. Carts idle longer than ttl are
// evicted by a background sweeper.
func NewManager(secret string, ttl time.Duration, m *metrics.AppMetrics) *Manager {
	cookieStore := sessions.NewCookieStore([]byte(secret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
	}

	mgr := &Manager{
		store:   cookieStore,
		ttl:     ttl,
		metrics: m,
		carts:   make(map[string]*record),
	}
	go mgr.sweep()
	return mgr
}

// Cart returns the cart for the request's session along with the session
// ID, assigning a new session cookie when none exists yet.
func (m *Manager) Cart(w http.ResponseWriter, r *http.Request) (*cart.Cart, string, error) {
	// A decode error means a stale or tampered cookie; start fresh.
	sess, err := m.store.Get(r, cookieName)
	if err != nil {
		logrus.WithError(err).Debug("resetting undecodable session cookie")
	}

	sid, ok := sess.Values[sidKey].(string)
	if !ok || sid == "" {
		sid = uuid.NewString()
		sess.Values[sidKey] = sid
		if err := sess.Save(r, w); err != nil {
			return nil, "", err
		}
	}

	return m.cartFor(sid), sid, nil
}

// cartFor returns the session's cart, creating an empty one on first
// access and refreshing its idle timer.
func (m *Manager) cartFor(sid string) *cart.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.carts[sid]
	if !ok {
		rec = &record{cart: cart.New()}
		m.carts[sid] = rec
	}
	rec.lastSeen = time.Now()
	return rec.cart
}

// sweep periodically evicts idle carts and reports the active-carts gauge.
func (m *Manager) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-m.ttl)

		m.mu.Lock()
		active := 0
		for sid, rec := range m.carts {
			if rec.lastSeen.Before(cutoff) {
				delete(m.carts, sid)
				continue
			}
			if !rec.cart.IsEmpty() {
				active++
			}
		}
		m.mu.Unlock()

		if m.metrics != nil {
			ctx := context.Background()
			m.metrics.ActiveCartsCount.Record(ctx, int64(active),
				metric.WithAttributes(m.metrics.WithServiceName([]attribute.KeyValue{})...))
		}
	}
}
