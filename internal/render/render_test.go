package render

import (
	"strings"
	"testing"
)

func TestPostRenderer(t *testing.T) {
	r := NewPostRenderer()

	tests := []struct {
		name     string
		body     string
		contains []string
		absent   []string
	}{
		{
			name:     "emphasis in paragraph",
			body:     "hello *world*",
			contains: []string{"<p>", "<em>world</em>"},
		},
		{
			name:     "heading and list",
			body:     "# Title\n\n- one\n- two",
			contains: []string{"<h1>Title</h1>", "<ul>", "<li>one</li>"},
		},
		{
			name:   "script stripped",
			body:   "before <script>alert(1)</script> after",
			absent: []string{"<script", "alert(1)</script>"},
		},
		{
			name:     "h4 not allowed",
			body:     "#### small",
			contains: []string{"small"},
			absent:   []string{"<h4>"},
		},
		{
			name:     "bare url linkified",
			body:     "see https://example.com now",
			contains: []string{`href="https://example.com"`, `rel="nofollow"`},
		},
		{
			name:   "image removed",
			body:   "![x](http://example.com/x.png)",
			absent: []string{"<img"},
		},
		{
			name:   "event handler removed",
			body:   `<a href="http://example.com" onclick="evil()">x</a>`,
			absent: []string{"onclick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.body)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Render() = %q, want it to contain %q", got, want)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(got, bad) {
					t.Errorf("Render() = %q, must not contain %q", got, bad)
				}
			}
		})
	}
}

func TestCommentRenderer(t *testing.T) {
	r := NewCommentRenderer()

	got, err := r.Render("**bold** and `code`\n\n# heading")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"<strong>bold</strong>", "<code>code</code>", "heading"} {
		if !strings.Contains(got, want) {
			t.Errorf("Render() = %q, want it to contain %q", got, want)
		}
	}
	for _, bad := range []string{"<p>", "<h1>"} {
		if strings.Contains(got, bad) {
			t.Errorf("Render() = %q, must not contain %q", got, bad)
		}
	}
}
