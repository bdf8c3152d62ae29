package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits incident text into normalized terms for the offline
// hashing embedder.
type Tokenizer struct {
	stopwords map[string]struct{}
	normalize bool
}

// NewTokenizer creates a new Tokenizer. With normalize set, common English
// inflections are trimmed so "pools" and "pooling" meet "pool".
func NewTokenizer(normalize bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		normalize: normalize,
	}
}

// Tokenize splits text into lowercase terms, dropping stopwords and
// single-character words.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.normalize {
			word = trimInflection(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Features returns the terms of text followed by adjacent term pairs joined
// with a space. Pairs keep some word order in a bag-of-words vector.
func (t *Tokenizer) Features(text string) []string {
	tokens := t.Tokenize(text)
	if len(tokens) < 2 {
		return tokens
	}
	features := make([]string, 0, len(tokens)*2-1)
	features = append(features, tokens...)
	for i := 1; i < len(tokens); i++ {
		features = append(features, tokens[i-1]+" "+tokens[i])
	}
	return features
}

var inflections = []string{"ing", "ed", "es", "s"}

// trimInflection strips one common suffix while leaving at least three
// characters, and never touches words ending in "ss".
func trimInflection(word string) string {
	if strings.HasSuffix(word, "ss") {
		return word
	}
	for _, suffix := range inflections {
		if strings.HasSuffix(word, suffix) && len(word)-len(suffix) >= 3 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}

// splitWords splits text into words at anything that is not a letter, digit
// or underscore.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// defaultStopwords returns common English stopwords plus chat filler.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "which", "who", "what",
		"when", "where", "why", "how", "all", "some", "than", "too",
		"very", "just", "also", "now", "ok", "okay", "thanks", "yes",
		"looks", "like", "seeing", "any",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
