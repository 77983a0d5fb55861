// Package formatter cleans raw model output and encodes the bilingual wire
// envelope. The extraction rules are heuristic by nature; each one is
// enumerated here and covered by its own test rather than hidden in the
// orchestrator.
package formatter

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ragchat-api-go/internal/i18n"
	"github.com/ragchat-api-go/internal/models"
)

// Sentinel markers embedding the envelope in plain-text channels. Byte-exact
// for interoperability with existing consumers.
const (
	EnvelopeStart = "<!--DUAL_LANG_START-->"
	EnvelopeEnd   = "<!--DUAL_LANG_END-->"
)

var (
	reEnvelope     = regexp.MustCompile(`(?s)` + EnvelopeStart + `(.*?)` + EnvelopeEnd)
	reENSpan       = regexp.MustCompile(`(?is)\[EN\]\s*(.*?)(\[J\s*A\s*\]|\[/EN\]|$)`)
	reJATruncate   = regexp.MustCompile(`(?i)\[J\s*A\s*\]`)
	reJAMarker     = regexp.MustCompile(`(?i)\[\s*J\s*A\s*\]`)
	reENMarker     = regexp.MustCompile(`(?i)\[\s*EN\s*\]`)
	reEnglishTag   = regexp.MustCompile(`(?i)\[ENGLISH\]`)
	reJapaneseTag  = regexp.MustCompile(`(?i)\[JAPANESE\]`)
	reJapanesuTag  = regexp.MustCompile(`(?i)\[JAPANESU\]`)
	reHTMLComment  = regexp.MustCompile(`<!--.*?-->`)
	reDualLangJSON = regexp.MustCompile(`\{[^}]*"dualLanguage"[^}]*\}`)
	reBoldItalic   = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	reBold         = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic       = regexp.MustCompile(`\*(.+?)\*`)
	reHeading      = regexp.MustCompile(`(?m)^#+\s+`)
	reNewlines     = regexp.MustCompile(`\n\n\n+`)
)

// jaMarkerMinIndex guards the trailing-[JA] truncation against false
// positives on short strings. The threshold is inherited behavior; treat it
// as a product constant, not a derived value.
const jaMarkerMinIndex = 20

// enSpanMinLength is the minimum captured [EN] span worth keeping.
const enSpanMinLength = 10

// CleanModelOutput strips envelope fragments, language-tag markers, and
// markdown emphasis from raw model output. Applying it twice yields the same
// result as applying it once.
func CleanModelOutput(text string) string {
	if text == "" {
		return ""
	}

	cleaned := text

	// Rule 1: extract the relevant field from an embedded JSON envelope.
	if strings.Contains(cleaned, `"dualLanguage"`) || strings.Contains(cleaned, `"translated"`) {
		cleaned = extractJSONField(cleaned, "translated", "english", "content")
	}

	// Rule 2: keep only a leading [EN] span when it is long enough to be
	// real content.
	if m := reENSpan.FindStringSubmatch(cleaned); m != nil {
		span := strings.TrimSpace(m[1])
		if len([]rune(span)) > enSpanMinLength {
			cleaned = span
		}
	}

	// Rule 3: truncate from a trailing [JA] marker, unless it sits so early
	// that it is probably not a section break.
	if loc := reJATruncate.FindStringIndex(cleaned); loc != nil && loc[0] > jaMarkerMinIndex {
		cleaned = strings.TrimSpace(cleaned[:loc[0]])
	}

	return stripArtifacts(cleaned, true)
}

// CleanJapaneseOutput is the CleanModelOutput counterpart for the japanese
// envelope field.
func CleanJapaneseOutput(text string) string {
	if text == "" {
		return ""
	}

	cleaned := text
	if strings.Contains(cleaned, `"dualLanguage"`) || strings.Contains(cleaned, `"japanese"`) {
		cleaned = extractJSONField(cleaned, "japanese", "content")
	}

	return stripArtifacts(cleaned, false)
}

// extractJSONField parses the first balanced {...} block and returns the
// first present field, falling back to stripping the envelope textually when
// parsing fails.
func extractJSONField(text string, fields ...string) string {
	block, ok := firstBalancedBlock(text)
	if ok {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(block), &parsed); err == nil {
			for _, field := range fields {
				if v, ok := parsed[field].(string); ok && v != "" {
					return v
				}
			}
			return text
		}
	}
	return reDualLangJSON.ReplaceAllString(text, "")
}

// firstBalancedBlock returns the first brace-balanced {...} substring.
func firstBalancedBlock(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// stripArtifacts removes marker tokens, HTML comments, markdown emphasis,
// heading markers, and excess blank lines.
func stripArtifacts(text string, includeLanguageTags bool) string {
	cleaned := reENMarker.ReplaceAllString(text, "")
	cleaned = reJAMarker.ReplaceAllString(cleaned, "")
	if includeLanguageTags {
		cleaned = reEnglishTag.ReplaceAllString(cleaned, "")
		cleaned = reJapaneseTag.ReplaceAllString(cleaned, "")
		cleaned = reJapanesuTag.ReplaceAllString(cleaned, "")
	}
	cleaned = reHTMLComment.ReplaceAllString(cleaned, "")
	cleaned = reDualLangJSON.ReplaceAllString(cleaned, "")
	cleaned = reBoldItalic.ReplaceAllString(cleaned, "$1")
	cleaned = reBold.ReplaceAllString(cleaned, "$1")
	cleaned = reItalic.ReplaceAllString(cleaned, "$1")
	cleaned = reHeading.ReplaceAllString(cleaned, "")
	cleaned = reNewlines.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// Envelope is a serialized dual-language payload.
type Envelope struct {
	Raw     string
	Wrapped string
}

// Formatter encodes dual-language envelopes and resolves localized fallback
// strings.
type Formatter struct {
	localizer *i18n.Localizer
}

// New creates a formatter backed by the given localizer.
func New(localizer *i18n.Localizer) *Formatter {
	return &Formatter{localizer: localizer}
}

// CreateEnvelope cleans both renderings, serializes them as the dual-language
// JSON object, and wraps the result between the sentinel markers.
func (f *Formatter) CreateEnvelope(englishText, japaneseText, targetLanguage string) (Envelope, error) {
	payload := models.DualLanguageEnvelope{
		DualLanguage:   true,
		Japanese:       CleanJapaneseOutput(japaneseText),
		Translated:     CleanModelOutput(englishText),
		TargetLanguage: targetLanguage,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return Envelope{}, err
	}

	raw := strings.TrimSuffix(buf.String(), "\n")
	return Envelope{
		Raw:     raw,
		Wrapped: EnvelopeStart + raw + EnvelopeEnd,
	}, nil
}

// ParseEnvelope extracts a dual-language envelope from wrapped or bare
// content. It returns nil when no parseable envelope is present; it never
// panics.
func ParseEnvelope(content string) *models.DualLanguageEnvelope {
	if m := reEnvelope.FindStringSubmatch(content); m != nil {
		var env models.DualLanguageEnvelope
		if err := json.Unmarshal([]byte(m[1]), &env); err == nil {
			return &env
		}
		return nil
	}

	if strings.Contains(content, `"dualLanguage"`) {
		if block, ok := firstBalancedBlock(content); ok {
			var env models.DualLanguageEnvelope
			if err := json.Unmarshal([]byte(block), &env); err == nil {
				return &env
			}
		}
	}

	return nil
}

// FallbackMessage returns the localized apology used when generation comes
// back empty or too short to be useful.
func (f *Formatter) FallbackMessage(lang string) string {
	return f.localizer.Get(lang, i18n.MsgFallbackAnswer)
}
