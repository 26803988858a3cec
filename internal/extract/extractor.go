// Package extract turns raw HTML responses into structured page metadata.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/crawlware/topiccrawler/internal/crawler"
)

// Extractor implements crawler.Extractor on top of goquery, with
// go-readability producing the reduced main-content document. Each field is
// extracted independently: a single field failing degrades that field to its
// default and never fails the whole extraction.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract validates the content type, parses the DOM, and pulls every field.
// Only the content-type check and the DOM parse can fail; those map to
// crawler.ErrContentType and crawler.ErrParse respectively.
func (e *Extractor) Extract(resp *crawler.Response) (crawler.Extraction, error) {
	ct := strings.ToLower(resp.ContentType)
	if !strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml") {
		return crawler.Extraction{}, fmt.Errorf("%w: not an HTML page, content-type %q", crawler.ErrContentType, ct)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return crawler.Extraction{}, fmt.Errorf("%w: %v", crawler.ErrParse, err)
	}

	out := crawler.Extraction{
		Title:       e.field(resp.URL, "title", "", func() string { return extractTitle(doc) }),
		Description: e.field(resp.URL, "description", "", func() string { return extractDescription(doc) }),
		Keywords:    e.field(resp.URL, "keywords", "", func() string { return metaContent(doc, `meta[name="keywords"]`) }),
		Author:      e.field(resp.URL, "author", "", func() string { return extractAuthor(doc) }),
		Language:    e.field(resp.URL, "language", "en", func() string { return extractLanguage(doc) }),
		Content:     e.field(resp.URL, "content", "", func() string { return e.mainContent(resp) }),
	}
	// Text extraction mutates the DOM (script/style removal), so it runs
	// after the metadata fields.
	out.TextContent = e.field(resp.URL, "text_content", "", func() string { return extractText(doc) })
	return out, nil
}

// field runs one fallible extraction, mapping a panic to the default value.
// goquery is panic-free in normal operation; this is the boundary that keeps
// a broken field from aborting the attempt.
func (e *Extractor) field(pageURL, name, def string, fn func() string) (value string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("field extraction failed",
				zap.String("url", pageURL),
				zap.String("field", name),
				zap.Any("panic", r))
			value = def
		}
	}()
	value = strings.TrimSpace(fn())
	if value == "" {
		value = def
	}
	return value
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return doc.Find("h1").First().Text()
}

func extractDescription(doc *goquery.Document) string {
	if desc := metaContent(doc, `meta[name="description"]`); desc != "" {
		return desc
	}
	return metaContent(doc, `meta[property="og:description"]`)
}

// extractAuthor checks the author meta variants in priority order; the first
// hit wins.
func extractAuthor(doc *goquery.Document) string {
	selectors := []string{
		`meta[name="author"]`,
		`meta[property="article:author"]`,
		`meta[name="twitter:creator"]`,
	}
	for _, sel := range selectors {
		if author := metaContent(doc, sel); author != "" {
			return author
		}
	}
	return ""
}

func extractLanguage(doc *goquery.Document) string {
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && strings.TrimSpace(lang) != "" {
		return lang
	}
	return metaContent(doc, `meta[http-equiv="content-language"]`)
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

// mainContent runs the readability reduction. Failure yields an empty
// content field, not a failed extraction.
func (e *Extractor) mainContent(resp *crawler.Response) string {
	pageURL, err := url.Parse(resp.URL)
	if err != nil {
		pageURL = &url.URL{}
	}
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(resp.Body), pageURL)
	if err != nil {
		e.logger.Warn("readability extraction failed",
			zap.String("url", resp.URL), zap.Error(err))
		return ""
	}
	return article.Content
}

// extractText strips script/style nodes and collapses all whitespace runs to
// single spaces.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
