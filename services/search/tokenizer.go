package search

import (
	"regexp"
	"strings"
)

// stopwords dropped during tokenization: particles, connectives, and filler
// nouns that carry no retrieval signal.
var stopwords = map[string]struct{}{
	"은": {}, "는": {}, "이": {}, "가": {}, "을": {}, "를": {}, "의": {},
	"에": {}, "에서": {}, "로": {}, "으로": {}, "와": {}, "과": {}, "도": {},
	"만": {}, "뿐": {}, "부터": {}, "까지": {}, "에게": {}, "한테": {}, "께": {},
	"그리고": {}, "그러나": {}, "하지만": {}, "또한": {}, "또": {}, "및": {}, "등": {},
	"하다": {}, "되다": {}, "있다": {}, "없다": {}, "같다": {}, "위한": {}, "통한": {}, "대한": {},
	"것": {}, "수": {}, "중": {}, "내": {}, "외": {},
}

// nonToken matches everything outside Hangul, word characters, and whitespace.
var nonToken = regexp.MustCompile(`[^\w\s가-힣]`)

// Tokenize splits text into lowercase keyword tokens: non-word characters
// become spaces, stopwords and single-character tokens are dropped.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	text = strings.ToLower(text)
	text = nonToken.ReplaceAllString(text, " ")

	var tokens []string
	for _, tok := range strings.Fields(text) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if len([]rune(tok)) < 2 {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokenizeForIndex tokenizes document text for BM25 indexing. Domain
// keywords from the threshold-adjustment vocabulary are counted twice so
// that documents mentioning them rank ahead of incidental matches.
func TokenizeForIndex(text string, boostKeywords map[string]float64) []string {
	tokens := Tokenize(text)
	if len(boostKeywords) == 0 {
		return tokens
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok)
		if _, boosted := boostKeywords[tok]; boosted {
			out = append(out, tok)
		}
	}
	return out
}
