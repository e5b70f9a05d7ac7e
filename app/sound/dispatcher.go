package sound

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/taxonomy"
)

// Alert is one audible notification.
type Alert struct {
	ItemID   string    `json:"itemId"`
	Headline string    `json:"headline"`
	Volume   float64   `json:"volume"`
	At       time.Time `json:"at"`
}

// Sink receives alerts that passed the policy and the cooldown.
type Sink interface {
	Play(alert Alert)
}

type SinkFunc func(alert Alert)

func (f SinkFunc) Play(alert Alert) { f(alert) }

// PreferencesSource returns the current preferences for a user.
type PreferencesSource interface {
	Current(userID string) Preferences
}

// PreferencesLoader is a PreferencesSource that must be loaded per user
// before Current reflects the stored settings.
type PreferencesLoader interface {
	PreferencesSource
	Load(ctx context.Context, userID string) (Preferences, error)
}

var _ PreferencesLoader = (*Service)(nil)

const recentItemLimit = 512

// Dispatcher is shared by every pane session of one user so an item that is
// offered by several panes plays once.
type Dispatcher struct {
	userID string
	prefs  PreferencesSource
	gate   *Gate
	sink   Sink

	mu     sync.Mutex
	played map[string]struct{}
	order  []string
}

func NewDispatcher(userID string, prefs PreferencesSource, gate *Gate, sink Sink) *Dispatcher {
	return &Dispatcher{
		userID: userID,
		prefs:  prefs,
		gate:   gate,
		sink:   sink,
		played: make(map[string]struct{}),
	}
}

// Offer evaluates one item arrival and plays at most one alert for it.
func (d *Dispatcher) Offer(itemID, headline string, tags []taxonomy.Tag, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.played[itemID]; ok {
		return false
	}

	prefs := d.prefs.Current(d.userID)
	if !ShouldAlert(tags, prefs) {
		return false
	}
	if !d.gate.Allow(now) {
		slog.Debug("Sound suppressed by cooldown", "user", d.userID, "item", itemID)
		return false
	}

	d.remember(itemID)
	d.sink.Play(Alert{ItemID: itemID, Headline: headline, Volume: prefs.Volume, At: now})
	return true
}

func (d *Dispatcher) remember(itemID string) {
	d.played[itemID] = struct{}{}
	d.order = append(d.order, itemID)
	if len(d.order) > recentItemLimit {
		delete(d.played, d.order[0])
		d.order = d.order[1:]
	}
}
