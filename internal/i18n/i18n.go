package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message IDs
const (
	MsgFallbackAnswer = "fallback_answer"
	MsgNoRelevantInfo = "no_relevant_info"
	MsgRateLimited    = "rate_limited"
)

// Localizer resolves user-facing strings per language.
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

var supportedLanguages = map[string]language.Tag{
	"en": language.English,
	"ja": language.Japanese,
}

// NewLocalizer builds a localizer with built-in defaults, optionally
// overridden by JSON message files in dir (one per language, e.g. en.json).
func NewLocalizer(defaultLanguage, dir string) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	registerDefaults(bundle)

	if dir != "" {
		for lang := range supportedLanguages {
			path := filepath.Join(dir, lang+".json")
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if _, err := bundle.LoadMessageFile(path); err != nil {
				return nil, fmt.Errorf("failed to load language file %s: %w", path, err)
			}
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for lang := range supportedLanguages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	if _, ok := localizers[defaultLanguage]; !ok {
		return nil, fmt.Errorf("unsupported default language: %s", defaultLanguage)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
		localizers:      localizers,
	}, nil
}

func registerDefaults(bundle *i18n.Bundle) {
	bundle.AddMessages(language.English,
		&i18n.Message{
			ID:    MsgFallbackAnswer,
			Other: "I'm sorry, I couldn't generate a response. Please try again.",
		},
		&i18n.Message{
			ID:    MsgNoRelevantInfo,
			Other: "I couldn't find relevant information in your documents to answer this question.",
		},
		&i18n.Message{
			ID:    MsgRateLimited,
			Other: "Too many requests. Please wait a moment and try again.",
		},
	)

	bundle.AddMessages(language.Japanese,
		&i18n.Message{
			ID:    MsgFallbackAnswer,
			Other: "申し訳ありませんが、回答を生成できませんでした。もう一度お試しください。",
		},
		&i18n.Message{
			ID:    MsgNoRelevantInfo,
			Other: "ご質問にお答えできる関連情報がドキュメント内に見つかりませんでした。",
		},
		&i18n.Message{
			ID:    MsgRateLimited,
			Other: "リクエストが多すぎます。しばらく待ってからもう一度お試しください。",
		},
	)
}

// DefaultLanguage returns the configured fallback language.
func (l *Localizer) DefaultLanguage() string {
	return l.defaultLanguage
}

// Get returns the localized message, falling back to the default language
// and then to the message ID itself.
func (l *Localizer) Get(lang, messageID string) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return msg
}
