package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/news-comb/app/apperr"
	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/sound"
)

var sessionTopics = []realtime.Topic{
	{Table: realtime.TableNewsItems, Types: []realtime.EventType{realtime.EventInsert}},
	{Table: realtime.TableUserReadItems},
	{Table: realtime.TableUserSavedItems},
	{Table: realtime.TablePanes},
}

// Manager tracks open pane sessions. All sessions of one user share a sound
// dispatcher, so an item plays at most one alert whichever pane shows it.
type Manager struct {
	hub      *realtime.Hub
	deps     Deps
	prefs    sound.PreferencesLoader
	cooldown time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Controller
	users    map[string]*userAlerts
}

type userAlerts struct {
	dispatcher *sound.Dispatcher
	mu         sync.Mutex
	listeners  map[chan sound.Alert]struct{}
}

func (u *userAlerts) Play(alert sound.Alert) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for ch := range u.listeners {
		select {
		case ch <- alert:
		default:
		}
	}
}

// NewManager builds a manager. deps.Alerts is ignored; alerts go through the
// per-user dispatchers.
func NewManager(hub *realtime.Hub, deps Deps, prefs sound.PreferencesLoader, cooldown time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		hub:      hub,
		deps:     deps,
		prefs:    prefs,
		cooldown: cooldown,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Controller),
		users:    make(map[string]*userAlerts),
	}
}

// Open subscribes a new session to the change feed, then loads it. A load
// failure leaves the session open in the Failed state; an unknown pane
// closes it and returns a NotFoundError.
func (m *Manager) Open(ctx context.Context, userID, paneID string) (*Controller, error) {
	deps := m.deps
	deps.Alerts = m.user(ctx, userID).dispatcher

	sub := m.hub.Subscribe(sessionTopics...)
	c := NewController(uuid.NewString(), paneID, userID, deps, sub)

	m.mu.Lock()
	m.sessions[c.ID()] = c
	m.mu.Unlock()

	go c.Run(m.ctx)

	if err := c.Load(ctx); err != nil {
		if apperr.IsNotFound(err) {
			m.Close(c.ID())
			return nil, err
		}
	}

	slog.Debug("Pane session opened", "session", c.ID(), "pane", paneID, "user", userID)
	return c, nil
}

// Get returns the user's session with the given id.
func (m *Manager) Get(sessionID, userID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[sessionID]
	if !ok || c.UserID() != userID {
		return nil, apperr.NotFound("session", sessionID)
	}
	return c, nil
}

func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	c, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		c.Close()
		slog.Debug("Pane session closed", "session", sessionID)
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Alerts streams the user's alerts until cancel is called.
func (m *Manager) Alerts(ctx context.Context, userID string) (<-chan sound.Alert, func()) {
	u := m.user(ctx, userID)
	ch := make(chan sound.Alert, 8)

	u.mu.Lock()
	u.listeners[ch] = struct{}{}
	u.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			u.mu.Lock()
			delete(u.listeners, ch)
			u.mu.Unlock()
		})
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Controller, 0, len(m.sessions))
	for id, c := range m.sessions {
		sessions = append(sessions, c)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
}

// user returns the user's alert fan-out after reading their stored sound
// preferences. If that read fails the user stays muted.
func (m *Manager) user(ctx context.Context, userID string) *userAlerts {
	if _, err := m.prefs.Load(ctx, userID); err != nil {
		slog.Warn("Sound preferences unavailable, alerts muted", "user", userID, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		u = &userAlerts{listeners: make(map[chan sound.Alert]struct{})}
		u.dispatcher = sound.NewDispatcher(userID, m.prefs, sound.NewGate(m.cooldown), u)
		m.users[userID] = u
	}
	return u
}
