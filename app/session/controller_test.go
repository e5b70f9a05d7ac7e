package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/news-comb/app/apperr"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/routing"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeNews struct {
	mu       sync.Mutex
	items    []database.NewsItem
	err      error
	gapCalls int
}

func (f *fakeNews) add(items ...database.NewsItem) {
	f.mu.Lock()
	f.items = append(f.items, items...)
	f.mu.Unlock()
}

func (f *fakeNews) list(keep func(time.Time) bool, limit int) []database.NewsItem {
	var out []database.NewsItem
	for _, item := range f.items {
		if keep(item.PublishedAt) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeNews) ListPublishedSince(_ context.Context, since time.Time, limit int) ([]database.NewsItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.list(func(t time.Time) bool { return !t.Before(since) }, limit), nil
}

func (f *fakeNews) ListPublishedAfter(_ context.Context, after time.Time, limit int) ([]database.NewsItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gapCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.list(func(t time.Time) bool { return t.After(after) }, limit), nil
}

type fakeMarks struct {
	marked map[string]bool
	err    error
}

func (f *fakeMarks) Set(_ context.Context, _ string, ids []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool)
	for _, id := range ids {
		if f.marked[id] {
			out[id] = true
		}
	}
	return out, nil
}

type fakeAlerts struct {
	mu     sync.Mutex
	offers []string
}

func (f *fakeAlerts) Offer(itemID, _ string, _ []taxonomy.Tag, _ time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, itemID)
	return true
}

type memoryPanes struct {
	panes []routing.Pane
}

func (m *memoryPanes) ListPanes(context.Context) ([]routing.Pane, error) {
	return m.panes, nil
}

func (m *memoryPanes) UpsertPane(_ context.Context, pane routing.Pane) error {
	for i := range m.panes {
		if m.panes[i].ID == pane.ID {
			m.panes[i] = pane
			return nil
		}
	}
	m.panes = append(m.panes, pane)
	return nil
}

func testPanes() []routing.Pane {
	return []routing.Pane{
		{ID: "risk_events", Title: "Risk Events", Rules: routing.Rules{
			Themes:   []string{"GEOPOLITICS", "RISK_EVENT"},
			Keywords: []string{"sanctions"},
		}},
		{ID: "americas", Title: "Americas", Rules: routing.Rules{
			Regions:  []string{"AMERICAS"},
			Keywords: []string{"Fed"},
		}},
	}
}

func newRuleStore(t *testing.T) *routing.Store {
	t.Helper()
	store := routing.NewStore(&memoryPanes{panes: testPanes()})
	require.NoError(t, store.Load(context.Background()))
	return store
}

func item(id, headline string, published time.Time) database.NewsItem {
	tags := taxonomy.Classify(headline, "Reuters")
	return database.NewsItem{
		ID:          id,
		Headline:    headline,
		Source:      "Reuters",
		URL:         "https://example.com/" + id,
		PublishedAt: published,
		Region:      tags.Region,
		Markets:     tags.Markets,
		Themes:      tags.Themes,
		Hash:        id,
	}
}

func riskItem(id string, published time.Time) database.NewsItem {
	return item(id, "US sanctions hit exporters "+id, published)
}

type harness struct {
	clock  *fakeClock
	news   *fakeNews
	read   *fakeMarks
	saved  *fakeMarks
	alerts *fakeAlerts
	rules  *routing.Store
}

func newHarness(t *testing.T) *harness {
	return &harness{
		clock:  &fakeClock{now: base},
		news:   &fakeNews{},
		read:   &fakeMarks{},
		saved:  &fakeMarks{},
		alerts: &fakeAlerts{},
		rules:  newRuleStore(t),
	}
}

func (h *harness) controller(paneID, userID string) *Controller {
	return NewController("s-1", paneID, userID, Deps{
		News:   h.news,
		Read:   h.read,
		Saved:  h.saved,
		Rules:  h.rules,
		Alerts: h.alerts,
		Clock:  h.clock.Now,
	}, nil)
}

func ids(view View) []string {
	out := make([]string, len(view.Items))
	for i, it := range view.Items {
		out[i] = it.ID
	}
	return out
}

func assertDescending(t *testing.T, view View) {
	t.Helper()
	assert.LessOrEqual(t, len(view.Items), MaxItems)
	assert.True(t, slices.IsSortedFunc(view.Items, func(a, b DisplayItem) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	}), "items must be newest first")
}

func TestLoadKeepsNewestOwnedItems(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 12; i++ {
		h.news.add(riskItem(fmt.Sprintf("r%02d", i), base.Add(-time.Duration(i+1)*time.Minute)))
	}
	h.news.add(item("a1", "Fed holds rates steady", base.Add(-30*time.Second)))
	h.news.add(riskItem("stale", base.Add(-25*time.Hour)))

	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	view := c.View()
	assert.Equal(t, StateLive, view.State)
	assert.Equal(t, []string{"r00", "r01", "r02", "r03", "r04", "r05", "r06", "r07", "r08", "r09"}, ids(view))
	assertDescending(t, view)
	for _, it := range view.Items {
		assert.Equal(t, HighlightNone, it.Highlight)
	}

	americas := h.controller("americas", "u1")
	require.NoError(t, americas.Load(context.Background()))
	assert.Equal(t, []string{"a1"}, ids(americas.View()))
}

func TestLoadAttachesFlagsAndDegrades(t *testing.T) {
	h := newHarness(t)
	h.news.add(riskItem("r1", base.Add(-time.Minute)), riskItem("r2", base.Add(-2*time.Minute)))
	h.read.marked = map[string]bool{"r1": true}
	h.saved.err = errors.New("saved marks unavailable")

	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	view := c.View()
	require.Len(t, view.Items, 2)
	assert.True(t, view.Items[0].IsRead)
	assert.False(t, view.Items[1].IsRead)
	assert.False(t, view.Items[0].IsSaved)
	assert.Equal(t, StateLive, view.State)
}

func TestLoadFailureSurfacesError(t *testing.T) {
	h := newHarness(t)
	h.news.err = errors.New("connection reset")

	c := h.controller("risk_events", "u1")
	err := c.Load(context.Background())
	require.Error(t, err)

	view := c.View()
	assert.Equal(t, StateFailed, view.State)
	assert.Equal(t, "connection reset", view.Error)
	assert.Nil(t, view.Items)
}

func TestLoadUnknownPane(t *testing.T) {
	h := newHarness(t)
	c := h.controller("nope", "u1")

	err := c.Load(context.Background())
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, StateNotFound, c.View().State)
}

func TestHandleInsertIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.news.add(riskItem("r1", base.Add(-time.Minute)))
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	fresh := riskItem("r2", base)
	assert.True(t, c.HandleInsert(fresh))
	first := c.View()
	assert.False(t, c.HandleInsert(fresh))

	assert.Equal(t, first, c.View())
	assert.Equal(t, []string{"r2", "r1"}, ids(first))
	assert.Equal(t, HighlightRealtime, first.Items[0].Highlight)
	assert.Equal(t, []string{"r2"}, h.alerts.offers)

	// Already loaded items are also seen.
	assert.False(t, c.HandleInsert(riskItem("r1", base.Add(-time.Minute))))
}

func TestHandleInsertOffersSoundForOwnedItemOutsideWindow(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < MaxItems; i++ {
		h.news.add(riskItem(fmt.Sprintf("r%02d", i), base.Add(-time.Duration(i)*time.Minute)))
	}
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	stale := riskItem("old", base.Add(-time.Hour))
	assert.False(t, c.HandleInsert(stale))
	assert.NotContains(t, ids(c.View()), "old")
	assert.Equal(t, []string{"old"}, h.alerts.offers)
}

func TestHandleInsertIgnoresItemsOwnedElsewhere(t *testing.T) {
	h := newHarness(t)
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	assert.False(t, c.HandleInsert(item("a1", "Fed holds rates steady", base)))
	assert.False(t, c.HandleInsert(item("g1", "Quiet day for markets", base)))
	assert.Empty(t, c.View().Items)
	assert.Empty(t, h.alerts.offers)
}

func TestHandleInsertKeepsCapAndOrder(t *testing.T) {
	h := newHarness(t)
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	offsets := []int{5, 1, 9, 3, 12, 7, 2, 15, 4, 11, 8, 6, 14, 0, 13, 10}
	for i, off := range offsets {
		c.HandleInsert(riskItem(fmt.Sprintf("r%02d", i), base.Add(time.Duration(off)*time.Minute)))
		assertDescending(t, c.View())
	}

	view := c.View()
	require.Len(t, view.Items, MaxItems)
	assert.True(t, view.Items[0].PublishedAt.Equal(base.Add(15*time.Minute)))
	assert.True(t, view.Items[9].PublishedAt.Equal(base.Add(6*time.Minute)))
}

func TestHighlightsExpire(t *testing.T) {
	h := newHarness(t)
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	c.HandleInsert(riskItem("r1", base))
	require.NotNil(t, c.View().Items[0].HighlightUntil)

	h.clock.Advance(NewHighlight)
	it := c.View().Items[0]
	assert.Equal(t, HighlightNone, it.Highlight)
	assert.Nil(t, it.HighlightUntil)
}

func TestResumeIsRateLimited(t *testing.T) {
	h := newHarness(t)
	h.news.add(riskItem("r1", base.Add(-time.Hour)))
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	fetched, err := c.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, fetched)

	h.clock.Advance(30 * time.Second)
	fetched, err = c.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)

	h.clock.Advance(31 * time.Second)
	fetched, err = c.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, 2, h.news.gapCalls)
}

func TestResumeFailureDoesNotConsumeLimit(t *testing.T) {
	h := newHarness(t)
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	h.news.err = errors.New("timeout")
	_, err := c.Resume(context.Background())
	require.Error(t, err)

	h.news.err = nil
	fetched, err := c.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, StateLive, c.View().State)
}

func TestResumeMergesMissedItems(t *testing.T) {
	h := newHarness(t)
	h.news.add(riskItem("r1", base.Add(-time.Hour)))
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	// Delivered live, then missed notifications land in the table.
	c.HandleInsert(riskItem("live", base.Add(-30*time.Minute)))
	h.news.add(
		riskItem("live", base.Add(-30*time.Minute)),
		riskItem("missed", base.Add(-10*time.Minute)),
		item("other", "Fed holds rates steady", base.Add(-5*time.Minute)),
	)
	h.saved.marked = map[string]bool{"missed": true}

	fetched, err := c.Resume(context.Background())
	require.NoError(t, err)
	require.True(t, fetched)

	view := c.View()
	assert.Equal(t, []string{"missed", "live", "r1"}, ids(view))
	assert.Equal(t, HighlightGap, view.Items[0].Highlight)
	assert.True(t, view.Items[0].IsSaved)
	assert.Equal(t, HighlightRealtime, view.Items[1].Highlight, "existing entries keep their state")

	h.clock.Advance(GapHighlight)
	assert.Equal(t, HighlightNone, c.View().Items[0].Highlight)
}

func TestResumeBeforeLoadIsNoop(t *testing.T) {
	h := newHarness(t)
	c := h.controller("risk_events", "u1")

	fetched, err := c.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Zero(t, h.news.gapCalls)
}

func TestReadAndSavedChangesAreScopedToUser(t *testing.T) {
	h := newHarness(t)
	h.news.add(riskItem("r1", base.Add(-time.Minute)))
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	c.HandleReadChange(database.UserItemChange{UserID: "u2", NewsItemID: "r1"}, true)
	assert.False(t, c.View().Items[0].IsRead)

	c.HandleReadChange(database.UserItemChange{UserID: "u1", NewsItemID: "r1"}, true)
	c.HandleSavedChange(database.UserItemChange{UserID: "u1", NewsItemID: "r1"}, true)
	assert.True(t, c.View().Items[0].IsRead)
	assert.True(t, c.View().Items[0].IsSaved)

	c.HandleReadChange(database.UserItemChange{UserID: "u1", NewsItemID: "r1"}, false)
	assert.False(t, c.View().Items[0].IsRead)
}

func TestRulesChangeRechecksItems(t *testing.T) {
	h := newHarness(t)
	h.news.add(riskItem("r1", base.Add(-time.Minute)))
	c := h.controller("risk_events", "u1")
	require.NoError(t, c.Load(context.Background()))

	updated := testPanes()[0]
	updated.Rules.Keywords = []string{"default"}
	updated.Rules.FilterMode = routing.FilterModeKeywordsOnly
	c.HandleRulesChange(updated, false)
	assert.Empty(t, c.View().Items)

	c.HandleRulesChange(updated, true)
	view := c.View()
	assert.Equal(t, StateNotFound, view.State)
	assert.NotEmpty(t, view.Error)
}

func TestCloseStopsMutation(t *testing.T) {
	h := newHarness(t)
	sub := realtime.NewHub().Subscribe(sessionTopics...)
	c := NewController("s-1", "risk_events", "u1", Deps{
		News: h.news, Rules: h.rules, Clock: h.clock.Now,
	}, sub)
	require.NoError(t, c.Load(context.Background()))

	c.Close()
	c.Close()

	assert.False(t, c.HandleInsert(riskItem("r1", base)))
	c.HandleRulesChange(testPanes()[0], true)
	assert.Equal(t, StateClosed, c.View().State)
	assert.Empty(t, c.View().Items)

	drained := 0
	for range c.Updates() {
		drained++
	}
	assert.LessOrEqual(t, drained, 1)

	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, realtime.ErrClosed)
}

func TestInsertDuringLoadSurvives(t *testing.T) {
	h := newHarness(t)
	h.news.add(riskItem("r1", base.Add(-time.Minute)))
	c := h.controller("risk_events", "u1")

	// A live insert can be handled before the initial fetch completes.
	require.True(t, c.HandleInsert(riskItem("early", base)))
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, []string{"early", "r1"}, ids(c.View()))
}
