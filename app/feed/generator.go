package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/routing"
)

type rssDocument struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	XmlnsAtom string     `xml:"xmlns:atom,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string      `xml:"title"`
	Link          string      `xml:"link"`
	Description   string      `xml:"description"`
	AtomLink      rssAtomLink `xml:"atom:link"`
	LastBuildDate string      `xml:"lastBuildDate"`
	Generator     string      `xml:"generator"`
	Items         []rssItem   `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	GUID       rssGUID  `xml:"guid"`
	Title      string   `xml:"title"`
	Link       string   `xml:"link,omitempty"`
	Source     string   `xml:"source,omitempty"`
	PubDate    string   `xml:"pubDate"`
	Categories []string `xml:"category"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Generator renders a pane's items as an RSS 2.0 document.
type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{baseURL: strings.TrimSuffix(baseURL, "/"), version: version}
}

// Run expects items newest first; the first one dates the channel.
func (g *Generator) Run(pane routing.Pane, items []database.NewsItem, now time.Time) (string, error) {
	title := pane.Title
	if title == "" {
		title = pane.ID
	}
	self := fmt.Sprintf("%s/panes/%s/feed.xml", g.baseURL, pane.ID)

	built := now
	if len(items) > 0 {
		built = items[0].PublishedAt
	}

	doc := rssDocument{
		Version:   "2.0",
		XmlnsAtom: "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         title,
			Link:          self,
			Description:   fmt.Sprintf("Headlines routed to the %s pane", title),
			AtomLink:      rssAtomLink{Href: self, Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: built.Format(time.RFC1123Z),
			Generator:     "News-Comb/" + g.version,
			Items:         make([]rssItem, 0, len(items)),
		},
	}

	for _, item := range items {
		entry := rssItem{
			GUID:    rssGUID{Value: item.ID},
			Title:   item.Headline,
			Link:    item.URL,
			Source:  item.Source,
			PubDate: item.PublishedAt.Format(time.RFC1123Z),
		}
		for _, tag := range item.Tags().List() {
			if tag.Value == "" {
				continue
			}
			entry.Categories = append(entry.Categories, tag.Value)
		}
		doc.Channel.Items = append(doc.Channel.Items, entry)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode RSS for pane %s: %w", pane.ID, err)
	}
	return xml.Header + string(out), nil
}
