package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var supportedTags = []string{
	"p", "br", "b", "i", "u", "s", "strong", "em",
	"code", "pre", "a", "ul", "ol", "li", "blockquote",
	"h1", "h2", "h3", "h4", "h5", "h6",
}

var (
	reTag      = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?>`)
	reTagName  = regexp.MustCompile(`</?([a-zA-Z]+)`)
	reScript   = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	reNewlines = regexp.MustCompile(`\n{3,}`)
)

// ToSafeHTML renders markdown to HTML restricted to a fixed set of display
// tags. Everything else, including script and style blocks, is removed.
func ToSafeHTML(source string) string {
	if source == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(source), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	html = reScript.ReplaceAllString(html, "")

	html = reTag.ReplaceAllStringFunc(html, func(match string) string {
		tagMatch := reTagName.FindStringSubmatch(match)
		if len(tagMatch) > 1 {
			tagName := strings.ToLower(tagMatch[1])
			for _, supported := range supportedTags {
				if tagName == supported {
					return match
				}
			}
		}
		return ""
	})

	html = reNewlines.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
