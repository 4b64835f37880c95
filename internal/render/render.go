// Package render turns user markdown into the sanitized HTML stored next to
// posts and comments.
package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	postTags = []string{
		"a", "abbr", "acronym", "b", "blockquote", "code", "em", "i",
		"li", "ol", "pre", "strong", "ul", "h1", "h2", "h3", "p",
	}
	commentTags = []string{"a", "abbr", "acronym", "b", "code", "em", "i", "strong"}
)

// Renderer converts markdown with a fixed tag allow-list. It is safe for
// concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newRenderer(tags []string) *Renderer {
	policy := bluemonday.NewPolicy()
	policy.AllowElements(tags...)
	policy.AllowAttrs("href", "title").OnElements("a")
	policy.AllowAttrs("title").OnElements("abbr", "acronym")
	policy.AllowStandardURLs()
	policy.RequireNoFollowOnLinks(true)

	// Raw HTML is passed through to the sanitizer, which decides what stays.
	md := goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Renderer{md: md, policy: policy}
}

// NewPostRenderer allows block markup: paragraphs, lists, quotes, code
// blocks and headings up to h3.
func NewPostRenderer() *Renderer {
	return newRenderer(postTags)
}

// NewCommentRenderer allows inline markup only.
func NewCommentRenderer() *Renderer {
	return newRenderer(commentTags)
}

// Render converts body to sanitized HTML
func (r *Renderer) Render(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}
