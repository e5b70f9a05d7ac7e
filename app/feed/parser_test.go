package feed

import (
	"testing"
	"time"
)

const marketsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Markets Wire</title>
    <link>https://wire.example.com</link>
    <description>Top market headlines</description>
    <language>en-gb</language>
    <item>
      <title><![CDATA[<b>Fed</b> holds   rates &amp; signals cuts]]></title>
      <link> https://wire.example.com/fed-holds </link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>ECB minutes show split on hikes</title>
      <link>https://wire.example.com/ecb-minutes</link>
    </item>
    <item>
      <link>https://wire.example.com/no-headline</link>
    </item>
  </channel>
</rss>`

const asiaAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Asia Desk</title>
  <link href="https://asia.example.com"/>
  <id>urn:asia-desk</id>
  <updated>2023-07-03T12:00:00Z</updated>
  <entry>
    <title>BOJ keeps yield curve control</title>
    <link href="https://asia.example.com/boj"/>
    <id>urn:asia-desk:boj</id>
    <updated>2023-07-03T10:00:00Z</updated>
  </entry>
  <entry>
    <title>Nikkei closes at record</title>
    <link href="https://asia.example.com/nikkei"/>
    <id>urn:asia-desk:nikkei</id>
    <published>2023-07-03T06:30:00+09:00</published>
    <updated>2023-07-03T11:00:00Z</updated>
  </entry>
</feed>`

func TestParseRSS2(t *testing.T) {
	metadata, entries, err := NewParser().Run([]byte(marketsRSS))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Markets Wire" || metadata.Language != "en-gb" {
		t.Errorf("Unexpected channel metadata: %+v", metadata)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got: %d", len(entries))
	}

	fed := entries[0]
	if fed.Title != "Fed holds rates & signals cuts" {
		t.Errorf("Expected markup stripped from headline, got: %q", fed.Title)
	}
	if fed.Link != "https://wire.example.com/fed-holds" {
		t.Errorf("Expected link trimmed, got: %q", fed.Link)
	}
	if want := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC); !fed.PublishedAt.Equal(want) {
		t.Errorf("Expected published %v, got %v", want, fed.PublishedAt)
	}

	// Undated and untitled entries still come through; ingestion decides.
	if !entries[1].PublishedAt.IsZero() {
		t.Errorf("Expected zero time for undated entry, got %v", entries[1].PublishedAt)
	}
	if entries[2].Title != "" {
		t.Errorf("Expected empty headline, got %q", entries[2].Title)
	}
}

func TestParseAtomDates(t *testing.T) {
	metadata, entries, err := NewParser().Run([]byte(asiaAtom))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.Title != "Asia Desk" {
		t.Errorf("Expected title 'Asia Desk', got: %s", metadata.Title)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(entries))
	}

	if want := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC); !entries[0].PublishedAt.Equal(want) {
		t.Errorf("Expected <updated> when <published> is absent, got %v", entries[0].PublishedAt)
	}
	nikkei := entries[1]
	if want := time.Date(2023, 7, 2, 21, 30, 0, 0, time.UTC); !nikkei.PublishedAt.Equal(want) {
		t.Errorf("Expected <published> converted to UTC, got %v", nikkei.PublishedAt)
	}
	if nikkei.PublishedAt.Location() != time.UTC {
		t.Errorf("Expected UTC location, got %v", nikkei.PublishedAt.Location())
	}
}

func TestParseInvalidFeed(t *testing.T) {
	for _, body := range []string{"invalid xml", ""} {
		if _, _, err := NewParser().Run([]byte(body)); err == nil {
			t.Errorf("Expected error for %q", body)
		}
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain headline", "Plain headline"},
		{"  padded\n\theadline  ", "padded headline"},
		{"Oil &amp; gas", "Oil & gas"},
		{"<i>Breaking</i>: yen slides", "Breaking: yen slides"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentHash(t *testing.T) {
	base := ContentHash("US sanctions and Fed meeting today", "Reuters")

	if len(base) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(base))
	}
	if got := ContentHash("  us SANCTIONS and   fed meeting today ", "REUTERS"); got != base {
		t.Error("Expected case and whitespace to be ignored")
	}
	if got := ContentHash("US sanctions and Fed meeting today", "Bloomberg"); got == base {
		t.Error("Expected different source to change the hash")
	}
	if ContentHash("ab", "c") == ContentHash("a", "bc") {
		t.Error("Expected headline/source boundary to matter")
	}
	// Full-width characters normalize to their ASCII form.
	if got := ContentHash("ＦＥＤ holds", "Reuters"); got != ContentHash("FED holds", "Reuters") {
		t.Error("Expected NFKC normalization")
	}
}
