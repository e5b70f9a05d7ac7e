package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/apperr"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/taxonomy"
)

type SourceLister interface {
	ListActive(ctx context.Context) ([]database.RSSSource, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

type Parser interface {
	Run(data []byte) (*feed.Metadata, []feed.Entry, error)
}

type ItemWriter interface {
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Insert(ctx context.Context, item *database.NewsItem) (bool, error)
}

type LogWriter interface {
	Append(ctx context.Context, entry database.IngestionLog) error
}

type StatusWriter interface {
	Set(ctx context.Context, status string, lastIngest time.Time) error
}

// SourceResult summarises one source within a run. Failed counts entries that
// were fetched but not inserted.
type SourceResult struct {
	Source     string `json:"source"`
	Success    int    `json:"success"`
	Failed     int    `json:"failed"`
	Duplicates int    `json:"duplicates"`
	Error      string `json:"error,omitempty"`
}

type Result struct {
	TotalInserted int            `json:"totalInserted"`
	TotalFailed   int            `json:"totalFailed"`
	Results       []SourceResult `json:"results"`
	Status        string         `json:"status"`
}

// Pipeline runs one ingestion pass over the active sources.
type Pipeline struct {
	sources SourceLister
	fetcher Fetcher
	parser  Parser
	items   ItemWriter
	logs    LogWriter
	status  StatusWriter
	timeout time.Duration
	now     func() time.Time
}

func NewPipeline(sources SourceLister, fetcher Fetcher, parser Parser, items ItemWriter,
	logs LogWriter, status StatusWriter, timeout time.Duration) *Pipeline {
	return &Pipeline{
		sources: sources,
		fetcher: fetcher,
		parser:  parser,
		items:   items,
		logs:    logs,
		status:  status,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run processes active sources one after another. A failing source is logged
// and reported but never stops the others. Run only fails when the source
// list cannot be read or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	sources, err := p.sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}

	result := &Result{Results: make([]SourceResult, 0, len(sources)), Status: database.StatusLive}
	if len(sources) == 0 {
		return result, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sr := p.processSource(ctx, source)
		result.Results = append(result.Results, sr)
		result.TotalInserted += sr.Success
		result.TotalFailed += sr.Failed
		if sr.Error != "" {
			result.Status = database.StatusPartial
		}
	}

	if err := p.status.Set(ctx, result.Status, p.now()); err != nil {
		slog.Warn("Failed to update system status", "error", err)
	}

	slog.Info("Task completed",
		"type", "Ingest",
		"duration", time.Since(start),
		"sources", len(sources),
		"inserted", result.TotalInserted,
		"failed", result.TotalFailed,
		"status", result.Status)

	return result, nil
}

func (p *Pipeline) processSource(ctx context.Context, source database.RSSSource) SourceResult {
	sr := SourceResult{Source: source.Name}

	entries, err := p.load(ctx, source)
	if err != nil {
		slog.Warn("Source ingestion failed", "source", source.Name, "error", err)
		sr.Error = err.Error()
		p.appendLog(ctx, source.ID, database.IngestionFailed, 0, sr.Error)
		return sr
	}

	for _, entry := range entries {
		inserted, duplicate := p.store(ctx, source, entry)
		switch {
		case inserted:
			sr.Success++
		case duplicate:
			sr.Duplicates++
		}
	}
	sr.Failed = len(entries) - sr.Success

	p.appendLog(ctx, source.ID, database.IngestionSuccess, sr.Success, "")

	slog.Debug("Source ingested", "source", source.Name, "entries", len(entries),
		"inserted", sr.Success, "duplicates", sr.Duplicates)
	return sr
}

func (p *Pipeline) load(ctx context.Context, source database.RSSSource) ([]feed.Entry, error) {
	data, err := p.fetcher.Fetch(ctx, source.URL, p.timeout)
	if err != nil {
		return nil, &apperr.FetchError{Source: source.Name, Err: err}
	}

	_, entries, err := p.parser.Run(data)
	if err != nil {
		return nil, &apperr.FetchError{Source: source.Name, Err: err}
	}
	return entries, nil
}

// store classifies and inserts one entry. Entries without a title or link
// are skipped.
func (p *Pipeline) store(ctx context.Context, source database.RSSSource, entry feed.Entry) (inserted, duplicate bool) {
	if entry.Title == "" || entry.Link == "" {
		return false, false
	}

	hash := feed.ContentHash(entry.Title, source.Name)

	exists, err := p.items.ExistsByHash(ctx, hash)
	if err != nil {
		slog.Warn("Failed to check for duplicates", "source", source.Name, "error", err)
		return false, false
	}
	if exists {
		return false, true
	}

	publishedAt := entry.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = p.now()
	}

	tags := taxonomy.Classify(entry.Title, source.Name)
	item := &database.NewsItem{
		SourceID:     source.ID,
		Headline:     entry.Title,
		Source:       source.Name,
		URL:          entry.Link,
		PublishedAt:  publishedAt.UTC(),
		Region:       tags.Region,
		Markets:      tags.Markets,
		Themes:       tags.Themes,
		Hash:         hash,
		RulesVersion: taxonomy.RulesVersion,
	}

	ok, err := p.items.Insert(ctx, item)
	if err != nil {
		slog.Warn("Failed to insert item", "source", source.Name, "headline", entry.Title, "error", err)
		return false, false
	}
	// Lost a race with a concurrent run.
	if !ok {
		return false, true
	}
	return true, false
}

func (p *Pipeline) appendLog(ctx context.Context, sourceID string, status database.IngestionStatus, fetched int, msg string) {
	var feedID *string
	if sourceID != "" {
		feedID = &sourceID
	}
	entry := database.IngestionLog{
		FeedID:       feedID,
		Status:       status,
		ItemsFetched: fetched,
		ErrorMessage: msg,
	}
	if err := p.logs.Append(ctx, entry); err != nil {
		slog.Warn("Failed to write ingestion log", "source_id", sourceID, "error", err)
	}
}
