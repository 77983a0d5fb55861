package classifier

import (
	"regexp"
	"strings"

	"github.com/ragchat-api-go/internal/models"
)

// Keywords that indicate document/company-related queries
var documentKeywordsEN = []string{
	// Document references
	"document", "file", "pdf", "uploaded", "attachment",
	// Personal info
	"my name", "my age", "my address", "my phone", "my email",
	"my birthday", "date of birth", "my account", "my balance",
	// Financial
	"payment", "due date", "credit", "limit", "statement", "balance",
	"invoice", "receipt", "transaction", "amount",
	// Work related
	"policy", "procedure", "guideline", "rule", "regulation",
	"employee", "salary", "payslip", "leave", "vacation",
	// Questions about content
	"what is in", "what does", "find in", "show me", "tell me about",
	"according to", "mentioned in", "says about",
}

var documentKeywordsJA = []string{
	// Document references
	"ドキュメント", "ファイル", "PDF", "アップロード", "添付",
	// Personal info
	"私の名前", "私の年齢", "私の住所", "私の電話", "私のメール",
	"誕生日", "生年月日", "口座", "残高",
	// Financial
	"支払", "期日", "クレジット", "限度", "明細", "残高",
	"請求書", "領収書", "取引", "金額",
	// Work related
	"ポリシー", "手続き", "ガイドライン", "規則", "規定",
	"従業員", "給与", "給料明細", "休暇",
}

// Interrogative forms referencing a possessive subject, e.g. "what is my ..."
var possessiveQuestionRe = regexp.MustCompile(`(?i)^(what|where|when|how much|who|which)\s+(is|are|was|were)\s+(my|the|our)`)

// DetectLanguage classifies the language of a query by the ratio of
// Hiragana/Katakana/CJK runes to total runes. Empty input counts as English.
func DetectLanguage(text string) models.Language {
	runes := []rune(text)
	if len(runes) == 0 {
		return models.LanguageEN
	}

	japanese := 0
	for _, r := range runes {
		if isJapaneseRune(r) {
			japanese++
		}
	}

	ratio := float64(japanese) / float64(len(runes))
	switch {
	case ratio > 0.3:
		return models.LanguageJA
	case ratio < 0.1:
		return models.LanguageEN
	default:
		return models.LanguageUnknown
	}
}

func isJapaneseRune(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) || // Hiragana
		(r >= 0x30A0 && r <= 0x30FF) || // Katakana
		(r >= 0x4E00 && r <= 0x9FAF) // CJK ideographs
}

// ClassifyIntent decides whether a query needs document search
func ClassifyIntent(text string) models.Intent {
	lower := strings.ToLower(text)

	for _, keyword := range documentKeywordsEN {
		if strings.Contains(lower, keyword) {
			return models.IntentDocument
		}
	}

	for _, keyword := range documentKeywordsJA {
		if strings.Contains(text, keyword) {
			return models.IntentDocument
		}
	}

	if possessiveQuestionRe.MatchString(text) {
		return models.IntentDocument
	}

	return models.IntentGeneral
}

// Classify runs full classification over a query.
// Document confidence grows with the number of keyword matches; general
// queries get a fixed confidence.
func Classify(text string) models.Classification {
	language := DetectLanguage(text)
	intent := ClassifyIntent(text)

	lower := strings.ToLower(text)
	matches := 0
	for _, keyword := range documentKeywordsEN {
		if strings.Contains(lower, keyword) {
			matches++
		}
	}
	for _, keyword := range documentKeywordsJA {
		if strings.Contains(text, keyword) {
			matches++
		}
	}

	confidence := 0.7
	if intent == models.IntentDocument {
		confidence = 0.5 + 0.1*float64(matches)
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	return models.Classification{
		Language:   language,
		Intent:     intent,
		Confidence: confidence,
	}
}

// ShouldUseRAG reports whether the query should go through document retrieval
func ShouldUseRAG(text string, hasDocuments bool) bool {
	if !hasDocuments {
		return false
	}
	return ClassifyIntent(text) == models.IntentDocument
}
