// Package format converts fetched HTML into the caller's requested output
// representation: markdown, html, text, or json.
package format

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"github.com/scrapesome/scrapesome/models"
	"golang.org/x/net/html"
)

// Formatter runs the three-stage formatting pipeline:
//
//	Stage 0 (scoping):    narrow the page to the request's CSS selector
//	Stage 1 (extraction): readability extracts main content, strips
//	                      nav/footer/sidebar/ads (skipped in "raw" mode)
//	Stage 2 (conversion): clean HTML → markdown/html/text/json
//
// The markdown converter is created once and reused across all requests
// (goroutine-safe).
type Formatter struct {
	md *converter.Converter
}

// New initialises a Formatter. The markdown converter carries the base
// plugin (drops script/style/head noise), commonmark rendering, and tables
// with minimal cell padding.
func New() *Formatter {
	return &Formatter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// jsonDocument is the shape of the "json" output format.
type jsonDocument struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url"`
}

// Format converts rawHTML into the request's output format.
//
// An unsupported output format is a caller-configuration error and is
// returned as such; it is not retried or recovered.
func (f *Formatter) Format(rawHTML string, req *models.FetchRequest) (string, error) {
	// ── Stage 0: CSS selector scoping ───────────────────────────────
	if req.CSSSelector != "" {
		scoped, err := scope(rawHTML, req.CSSSelector)
		if err != nil {
			return "", models.NewFetchError(
				models.ErrCodeInvalidInput,
				fmt.Sprintf("invalid css selector %q", req.CSSSelector),
				err,
			)
		}
		rawHTML = scoped
	}

	// ── Stage 1: content extraction ─────────────────────────────────
	var article readability.Article
	switch req.ExtractMode {
	case "raw":
		// Skip readability; use the fetched HTML as-is.
		article = fallbackArticle(rawHTML)
	default:
		// "readability" (default).
		article, _ = ExtractContent(rawHTML, req.URL)
	}

	// ── Stage 2: format conversion ──────────────────────────────────
	switch req.OutputFormat {
	case "markdown", "":
		md, err := f.md.ConvertString(article.Content, converter.WithDomain(req.URL))
		if err != nil {
			return "", models.NewFetchError(
				models.ErrCodeFormat,
				"markdown conversion failed",
				err,
			)
		}
		return md, nil

	case "html":
		return article.Content, nil

	case "text":
		return strings.TrimSpace(article.TextContent), nil

	case "json":
		doc := jsonDocument{
			Title:     article.Title,
			Content:   strings.TrimSpace(article.TextContent),
			SourceURL: req.URL,
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return "", models.NewFetchError(
				models.ErrCodeFormat,
				"json encoding failed",
				err,
			)
		}
		return string(b), nil

	default:
		return "", models.NewFetchError(
			models.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported output format %q", req.OutputFormat),
			nil,
		)
	}
}

// scope narrows rawHTML to the outer HTML of the elements matching the CSS
// selector group. When nothing matches, the page is returned whole: an
// over-specific selector degrades to a full-page result, not an empty one.
func scope(rawHTML, selector string) (string, error) {
	matcher, err := cascadia.ParseGroup(selector)
	if err != nil {
		return "", err
	}

	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	nodes := cascadia.QueryAll(root, matcher)
	if len(nodes) == 0 {
		return rawHTML, nil
	}

	var sb strings.Builder
	for _, node := range nodes {
		if err := html.Render(&sb, node); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// stripTags extracts visible text from an HTML fragment by parsing it with
// goquery. Returns trimmed plain text.
func stripTags(htmlFragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlFragment))
	if err != nil {
		return htmlFragment
	}
	return strings.TrimSpace(doc.Text())
}
