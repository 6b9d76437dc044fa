package artifact

import (
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// DefaultExcerptLimit caps each rendition of a failure excerpt.
const DefaultExcerptLimit = 16 << 10

var (
	policy = bluemonday.UGCPolicy()
	conv   = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// NewExcerpt builds the failure excerpt for a page body. The HTML is
// sanitized (scripts, handlers and styles removed) so the report API can
// serve it as text/html; the markdown rendition goes to logs and agents.
func NewExcerpt(rawHTML string, limit int) *scenario.Excerpt {
	if limit <= 0 {
		limit = DefaultExcerptLimit
	}
	clean := policy.Sanitize(rawHTML)

	md, err := conv.ConvertString(clean)
	if err != nil {
		md = ""
	}
	md = strings.TrimSpace(md)

	ex := &scenario.Excerpt{}
	ex.HTML, ex.Truncated = truncate(clean, limit)
	var cut bool
	ex.Markdown, cut = truncate(md, limit)
	ex.Truncated = ex.Truncated || cut
	return ex
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s, true
}
