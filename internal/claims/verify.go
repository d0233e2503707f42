package claims

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinKeywordLength is the exclusive lower bound on keyword length; shorter
// words are too common to count as evidence.
const MinKeywordLength = 3

// Claim is a factual assertion taken from a project description.
type Claim struct {
	Text string `json:"text"`
}

// Verification is the outcome of checking claims against submitted code.
type Verification struct {
	Verified   []Claim `json:"verified"`
	Unverified []Claim `json:"unverified"`
	Score      float64 `json:"score"`
}

// Total returns the number of claims that were checked.
func (v Verification) Total() int {
	return len(v.Verified) + len(v.Unverified)
}

// HasClaims reports whether any claim was checked.
func (v Verification) HasClaims() bool {
	return v.Total() > 0
}

// Verify marks a claim verified when any of its keywords appears in codeText.
// Matching is a case-insensitive substring test, so a keyword found inside a
// longer identifier still counts. With no claims the score is 100.
func Verify(claims []Claim, codeText string) Verification {
	result := Verification{
		Verified:   []Claim{},
		Unverified: []Claim{},
	}

	if len(claims) == 0 {
		result.Score = 100
		return result
	}

	haystack := strings.ToLower(codeText)
	for _, claim := range claims {
		if matches(claim, haystack) {
			result.Verified = append(result.Verified, claim)
			continue
		}
		result.Unverified = append(result.Unverified, claim)
	}

	result.Score = float64(len(result.Verified)) / float64(len(claims)) * 100
	return result
}

func matches(claim Claim, haystack string) bool {
	if haystack == "" {
		return false
	}
	for _, keyword := range Keywords(claim.Text) {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

// Keywords returns the lowercased words of text that are long enough to be
// matched. Surrounding punctuation is trimmed; inner punctuation is kept.
func Keywords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	keywords := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if utf8.RuneCountInString(word) > MinKeywordLength {
			keywords = append(keywords, word)
		}
	}
	return keywords
}
