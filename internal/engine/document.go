// Package engine implements the page analysis pipeline: fetch, parse, five
// independent heuristic analyzers, recommendation synthesis, and the
// composite score.
package engine

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document wraps a parsed page plus the URL it was fetched from. Malformed
// HTML never fails parsing; goquery's tokenizer recovers what it can and a
// hard parse error degrades to an empty document so analyzers stay resilient.
type Document struct {
	doc  *goquery.Document
	host string
}

// ParseDocument builds a Document from raw HTML. It never returns an error.
func ParseDocument(pageURL string, body []byte) *Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}
	return &Document{doc: doc, host: host}
}

// Title returns the trimmed text of the first <title> element.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// MetaContent returns the content attribute of <meta name=...>.
func (d *Document) MetaContent(name string) string {
	sel := d.doc.Find(`meta[name="` + name + `"]`).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

// HasMeta reports whether a <meta name=...> element exists at all,
// regardless of its content.
func (d *Document) HasMeta(name string) bool {
	return d.doc.Find(`meta[name="`+name+`"]`).Length() > 0
}

// H1Count returns the number of <h1> elements.
func (d *Document) H1Count() int {
	return d.doc.Find("h1").Length()
}

// FirstH1 returns the trimmed text of the first <h1>.
func (d *Document) FirstH1() string {
	return strings.TrimSpace(d.doc.Find("h1").First().Text())
}

// ImagesMissingAlt counts <img> elements whose alt attribute is absent or
// empty.
func (d *Document) ImagesMissingAlt() int {
	count := 0
	d.doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if alt, ok := s.Attr("alt"); !ok || alt == "" {
			count++
		}
	})
	return count
}

// HasCanonical reports whether a <link rel="canonical"> is present.
func (d *Document) HasCanonical() bool {
	return d.doc.Find(`link[rel="canonical"]`).Length() > 0
}

// StructuredDataCount counts JSON-LD script blocks.
func (d *Document) StructuredDataCount() int {
	return d.doc.Find(`script[type="application/ld+json"]`).Length()
}

// InternalLinkCount counts anchors that are root-relative or point at the
// page's own host.
func (d *Document) InternalLinkCount() int {
	count := 0
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		if strings.HasPrefix(href, "/") || (d.host != "" && strings.Contains(href, d.host)) {
			count++
		}
	})
	return count
}

// ReadableText extracts the page's visible text with script, style and
// noscript content stripped out.
func (d *Document) ReadableText() string {
	root := d.doc.Find("body")
	if root.Length() == 0 {
		root = d.doc.Selection
	}
	clone := root.Clone()
	clone.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}

// Clickables returns the inline style attribute of every clickable element,
// for touch-target inspection.
func (d *Document) Clickables() []string {
	var styles []string
	d.doc.Find(`button, a, input[type="button"], input[type="submit"]`).Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		styles = append(styles, style)
	})
	return styles
}
