package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/apperr"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/routing"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

type NewsReader interface {
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]database.NewsItem, error)
	ListPublishedAfter(ctx context.Context, after time.Time, limit int) ([]database.NewsItem, error)
}

// MembershipReader returns which of itemIDs the user has marked.
type MembershipReader interface {
	Set(ctx context.Context, userID string, itemIDs []string) (map[string]bool, error)
}

type RuleSource interface {
	Snapshot() *routing.Snapshot
}

type Alerter interface {
	Offer(itemID, headline string, tags []taxonomy.Tag, now time.Time) bool
}

// Events is the change feed a controller consumes. *realtime.Subscription
// satisfies it.
type Events interface {
	Next(ctx context.Context) (realtime.Event, error)
	Close()
}

type Deps struct {
	News   NewsReader
	Read   MembershipReader
	Saved  MembershipReader
	Rules  RuleSource
	Alerts Alerter
	Clock  func() time.Time
}

// Controller owns the displayed list of one pane for one viewer. Every
// mutation happens under mu and is keyed by item id, so the initial load,
// live inserts and gap reconciliation can interleave in any order.
type Controller struct {
	id     string
	paneID string
	userID string
	deps   Deps
	events Events

	mu           sync.Mutex
	state        State
	err          string
	items        []entry
	seen         map[string]struct{}
	watermark    time.Time
	lastGapCheck time.Time
	updates      chan struct{}
}

func NewController(id, paneID, userID string, deps Deps, events Events) *Controller {
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Controller{
		id:      id,
		paneID:  paneID,
		userID:  userID,
		deps:    deps,
		events:  events,
		state:   StateLoading,
		seen:    make(map[string]struct{}),
		updates: make(chan struct{}, 1),
	}
}

func (c *Controller) ID() string     { return c.id }
func (c *Controller) PaneID() string { return c.paneID }
func (c *Controller) UserID() string { return c.userID }

// Updates signals after every visible change. It is closed by Close.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Load fetches the last day of items, keeps the newest ones this pane owns
// and moves the session to Live. Items delivered live while the fetch was in
// flight are kept.
func (c *Controller) Load(ctx context.Context) error {
	snapshot := c.deps.Rules.Snapshot()
	if _, ok := snapshot.Get(c.paneID); !ok {
		err := apperr.NotFound("pane", c.paneID)
		c.fail(StateNotFound, err)
		return err
	}

	now := c.deps.Clock()
	since := now.Add(-LoadWindow)

	candidates, err := c.deps.News.ListPublishedSince(ctx, since, LoadLimit)
	if err != nil {
		c.fail(StateFailed, err)
		return err
	}

	owned := c.owned(snapshot, candidates)
	if len(owned) > MaxItems {
		owned = owned[:MaxItems]
	}
	read, saved := c.flags(ctx, owned)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil
	}

	loaded := make([]entry, 0, len(owned))
	for _, item := range owned {
		loaded = append(loaded, entry{item: item, read: read[item.ID], saved: saved[item.ID], highlight: HighlightNone})
	}
	c.items = merge(loaded, c.items)
	for _, e := range c.items {
		c.seen[e.item.ID] = struct{}{}
	}

	if c.watermark.IsZero() {
		c.watermark = since
	}
	c.advanceWatermark()

	c.state = StateLive
	c.err = ""
	c.signal()

	slog.Debug("Pane session loaded", "session", c.id, "pane", c.paneID, "candidates", len(candidates), "items", len(c.items))
	return nil
}

// HandleInsert applies one live insert notification. Owned items are offered
// to the sound dispatcher; the result reports whether the item was added to
// the view. Repeated deliveries of the same item are no-ops.
func (c *Controller) HandleInsert(item database.NewsItem) bool {
	c.mu.Lock()

	if c.state == StateClosed || c.state == StateNotFound {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.seen[item.ID]; ok {
		c.mu.Unlock()
		return false
	}

	owner, ok := c.deps.Rules.Snapshot().Route(routingItem(item))
	if !ok || owner != c.paneID {
		c.mu.Unlock()
		return false
	}

	now := c.deps.Clock()
	c.seen[item.ID] = struct{}{}
	fresh := entry{item: item, highlight: HighlightRealtime, until: now.Add(NewHighlight)}
	c.items = merge([]entry{fresh}, c.items)
	c.advanceWatermark()

	displayed := slices.ContainsFunc(c.items, func(e entry) bool { return e.item.ID == item.ID })
	if displayed {
		c.signal()
	}
	c.mu.Unlock()

	// Sound is evaluated for every owned arrival, even one older than the
	// displayed window.
	if c.deps.Alerts != nil {
		c.deps.Alerts.Offer(item.ID, item.Headline, item.Tags().List(), now)
	}
	return displayed
}

// Resume reconciles items that may have been missed while the viewer was
// away. It runs at most once per GapCooldown; a failed fetch does not count
// against the limit. It reports whether a fetch was made.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != StateLive {
		c.mu.Unlock()
		return false, nil
	}
	now := c.deps.Clock()
	if !c.lastGapCheck.IsZero() && now.Sub(c.lastGapCheck) < GapCooldown {
		c.mu.Unlock()
		return false, nil
	}
	previous := c.lastGapCheck
	c.lastGapCheck = now
	watermark := c.watermark
	c.mu.Unlock()

	candidates, err := c.deps.News.ListPublishedAfter(ctx, watermark, GapLimit)
	if err != nil {
		c.mu.Lock()
		if c.lastGapCheck.Equal(now) {
			c.lastGapCheck = previous
		}
		c.mu.Unlock()
		slog.Warn("Gap fetch failed", "session", c.id, "pane", c.paneID, "error", err)
		return false, err
	}

	owned := c.owned(c.deps.Rules.Snapshot(), candidates)
	read, saved := c.flags(ctx, owned)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLive {
		return true, nil
	}

	gap := make([]entry, 0, len(owned))
	for _, item := range owned {
		if _, ok := c.seen[item.ID]; ok {
			continue
		}
		c.seen[item.ID] = struct{}{}
		gap = append(gap, entry{
			item:      item,
			read:      read[item.ID],
			saved:     saved[item.ID],
			highlight: HighlightGap,
			until:     now.Add(GapHighlight),
		})
	}
	if len(gap) == 0 {
		return true, nil
	}

	c.items = merge(gap, c.items)
	c.advanceWatermark()
	c.signal()

	slog.Debug("Gap reconciled", "session", c.id, "pane", c.paneID, "fetched", len(candidates), "added", len(gap))
	return true, nil
}

// HandleReadChange applies a read mark change made by this session's user.
func (c *Controller) HandleReadChange(change database.UserItemChange, read bool) {
	c.updateFlag(change, func(e *entry) { e.read = read })
}

// HandleSavedChange applies a saved mark change made by this session's user.
func (c *Controller) HandleSavedChange(change database.UserItemChange, saved bool) {
	c.updateFlag(change, func(e *entry) { e.saved = saved })
}

func (c *Controller) updateFlag(change database.UserItemChange, apply func(*entry)) {
	if change.UserID != c.userID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	for i := range c.items {
		if c.items[i].item.ID == change.NewsItemID {
			apply(&c.items[i])
			c.signal()
			return
		}
	}
}

// HandleRulesChange re-checks displayed items after this pane's rules
// changed. A deleted pane ends the session in NotFound.
func (c *Controller) HandleRulesChange(pane routing.Pane, deleted bool) {
	if pane.ID != c.paneID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}

	if deleted {
		c.state = StateNotFound
		c.err = apperr.NotFound("pane", c.paneID).Error()
		c.items = nil
		c.signal()
		return
	}

	kept := c.items[:0]
	for _, e := range c.items {
		if routing.Filter(routingItem(e.item), pane.Rules) {
			kept = append(kept, e)
		}
	}
	c.items = kept
	c.signal()
}

// Run consumes the change feed until ctx ends or the session is closed.
func (c *Controller) Run(ctx context.Context) {
	for {
		evt, err := c.events.Next(ctx)
		if err != nil {
			if !errors.Is(err, realtime.ErrClosed) && !errors.Is(err, context.Canceled) {
				slog.Warn("Pane session feed stopped", "session", c.id, "error", err)
			}
			return
		}
		c.dispatch(evt)
	}
}

func (c *Controller) dispatch(evt realtime.Event) {
	switch evt.Table {
	case realtime.TableNewsItems:
		if item, ok := evt.Record.(database.NewsItem); ok && evt.Type == realtime.EventInsert {
			c.HandleInsert(item)
		}
	case realtime.TableUserReadItems:
		if change, ok := evt.Record.(database.UserItemChange); ok {
			c.HandleReadChange(change, evt.Type == realtime.EventInsert)
		}
	case realtime.TableUserSavedItems:
		if change, ok := evt.Record.(database.UserItemChange); ok {
			c.HandleSavedChange(change, evt.Type == realtime.EventInsert)
		}
	case realtime.TablePanes:
		if pane, ok := evt.Record.(routing.Pane); ok {
			c.HandleRulesChange(pane, evt.Type == realtime.EventDelete)
		}
	}
}

// Close tears down the change feed. No state changes after Close returns.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	close(c.updates)
	c.mu.Unlock()

	if c.events != nil {
		c.events.Close()
	}
}

// View returns the current state. Expired highlights are reported as none.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := View{PaneID: c.paneID, State: c.state, Error: c.err}
	if c.err != "" {
		return view
	}

	now := c.deps.Clock()
	view.Items = make([]DisplayItem, 0, len(c.items))
	for _, e := range c.items {
		view.Items = append(view.Items, e.display(now))
	}
	return view
}

func (c *Controller) fail(state State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = state
	c.err = err.Error()
	c.signal()
	slog.Warn("Pane session failed", "session", c.id, "pane", c.paneID, "state", state, "error", err)
}

// owned keeps candidates routed to this pane, preserving order.
func (c *Controller) owned(snapshot *routing.Snapshot, candidates []database.NewsItem) []database.NewsItem {
	owned := make([]database.NewsItem, 0, len(candidates))
	for _, item := range candidates {
		if owner, ok := snapshot.Route(routingItem(item)); ok && owner == c.paneID {
			owned = append(owned, item)
		}
	}
	return owned
}

// flags fetches read and saved marks. Failures degrade to unmarked.
func (c *Controller) flags(ctx context.Context, items []database.NewsItem) (read, saved map[string]bool) {
	if len(items) == 0 || c.userID == "" {
		return nil, nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	var err error
	if c.deps.Read != nil {
		if read, err = c.deps.Read.Set(ctx, c.userID, ids); err != nil {
			slog.Warn("Failed to load read marks", "session", c.id, "error", err)
			read = nil
		}
	}
	if c.deps.Saved != nil {
		if saved, err = c.deps.Saved.Set(ctx, c.userID, ids); err != nil {
			slog.Warn("Failed to load saved marks", "session", c.id, "error", err)
			saved = nil
		}
	}
	return read, saved
}

func (c *Controller) advanceWatermark() {
	if len(c.items) > 0 && c.items[0].item.PublishedAt.After(c.watermark) {
		c.watermark = c.items[0].item.PublishedAt
	}
}

// signal must be called with mu held.
func (c *Controller) signal() {
	if c.state == StateClosed {
		return
	}
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// merge puts incoming ahead of existing, drops later duplicates by id, sorts
// newest first and caps the result. An id already in existing keeps its
// existing entry.
func merge(incoming, existing []entry) []entry {
	combined := make([]entry, 0, len(incoming)+len(existing))
	ids := make(map[string]struct{}, len(incoming)+len(existing))
	for _, e := range existing {
		ids[e.item.ID] = struct{}{}
	}
	for _, e := range incoming {
		if _, dup := ids[e.item.ID]; dup {
			continue
		}
		ids[e.item.ID] = struct{}{}
		combined = append(combined, e)
	}
	combined = append(combined, existing...)

	slices.SortStableFunc(combined, func(a, b entry) int {
		return b.item.PublishedAt.Compare(a.item.PublishedAt)
	})
	if len(combined) > MaxItems {
		combined = combined[:MaxItems]
	}
	return combined
}

func routingItem(item database.NewsItem) routing.Item {
	return routing.Item{Headline: item.Headline, Source: item.Source, Tags: item.Tags()}
}
