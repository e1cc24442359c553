package generation

import (
	"strings"
	"unicode"
)

// Heuristic constants of the tail detector. Reproducible behavior matters
// more here than precision: identical input always yields identical output.
const (
	tailMinTotalWords = 50  // Texts shorter than this are exempt
	tailWindowMax     = 400 // Upper bound of the tail window, in words
	tailWindowMin     = 100 // Lower bound of the tail window, in words
	tailWindowShare   = 0.25

	tailDiversityThreshold = 0.35 // Type-token ratio below this means repetition
	tailBodyDensityFloor   = 0.02 // Minimal "meaningful" sentence-end density of the body
	tailMaxRunWithoutEnd   = 80   // Longest tolerated word run with no sentence end

	tailScoreThreshold = 1.5
	tailMarkerScore    = 0.5 // Markers alone must not flag a legitimate story
)

// Exclamatory/religious phrases that models tend to loop on when they
// degenerate. Matched case-insensitively as whole words/phrases.
var tailMarkerPhrases = []string{
	"hallelujah",
	"amen",
	"goodness gracious",
	"praise the lord",
	"glory be",
}

// DetectAndTrimTail inspects generated prose for a degenerate trailing run
// (repetition, missing sentence ends, marker exclamations) and trims it back
// to the last complete sentence of the body. Pure function over its input:
// same text and constants always produce the same answer. Never returns an
// empty text: when trimming would erase everything, the original content is
// returned unchanged with the flag still set.
func DetectAndTrimTail(content string) (bool, string) {
	trimmedInput := strings.TrimSpace(content)
	if trimmedInput == "" {
		return false, content
	}

	words, offsets := splitWords(trimmedInput)
	total := len(words)
	if total < tailMinTotalWords {
		return false, content
	}

	tailLen := int(float64(total) * tailWindowShare)
	if tailLen < tailWindowMin {
		tailLen = tailWindowMin
	}
	if tailLen > tailWindowMax {
		tailLen = tailWindowMax
	}
	if tailLen > total {
		tailLen = total
	}

	tailStart := total - tailLen
	tail := words[tailStart:]
	body := words[:tailStart]

	score := 0.0
	if lexicalDiversity(tail) < tailDiversityThreshold {
		score += 1.0
	}
	if sparseSentenceEnds(body, tail) {
		score += 1.0
	}
	if containsMarkerPhrase(tail) {
		score += tailMarkerScore
	}
	if longestRunWithoutSentenceEnd(tail) > tailMaxRunWithoutEnd {
		score += 1.0
	}

	if score < tailScoreThreshold {
		return false, content
	}

	// Cut back to the end of the last sentence before the tail window; if the
	// body has no sentence end at all, cut at the window boundary itself.
	tailOffset := offsets[tailStart]
	cut := lastSentenceEnd(trimmedInput[:tailOffset])
	var result string
	if cut >= 0 {
		result = strings.TrimSpace(trimmedInput[:cut+1])
	} else {
		result = strings.TrimSpace(trimmedInput[:tailOffset])
	}
	if result == "" {
		return true, content
	}
	return true, result
}

// splitWords splits on whitespace and records the byte offset of every word
// start, so the tail window boundary can be mapped back onto the text.
func splitWords(s string) ([]string, []int) {
	var words []string
	var offsets []int
	inWord := false
	start := 0
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord {
				words = append(words, s[start:i])
				offsets = append(offsets, start)
				inWord = false
			}
			continue
		}
		if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		words = append(words, s[start:])
		offsets = append(offsets, start)
	}
	return words, offsets
}

// lexicalDiversity is the type-token ratio of the window: distinct normalized
// words divided by total words.
func lexicalDiversity(words []string) float64 {
	if len(words) == 0 {
		return 1.0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		n := normalizeWord(w)
		if n == "" {
			continue
		}
		seen[n] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

// endsSentence reports whether the word carries sentence-ending punctuation,
// allowing a closing quote or bracket after the terminator.
func endsSentence(w string) bool {
	trimmed := strings.TrimRightFunc(w, func(r rune) bool {
		switch r {
		case '"', '\'', '»', ')', ']', '”', '’':
			return true
		}
		return false
	})
	return strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") ||
		strings.HasSuffix(trimmed, "…")
}

func sentenceEndDensity(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	ends := 0
	for _, w := range words {
		if endsSentence(w) {
			ends++
		}
	}
	return float64(ends) / float64(len(words))
}

// sparseSentenceEnds fires when the tail terminates sentences at less than
// half the body's rate; with no body to compare against, an absolute floor
// applies.
func sparseSentenceEnds(body, tail []string) bool {
	tailDensity := sentenceEndDensity(tail)
	if len(body) > 0 {
		bodyDensity := sentenceEndDensity(body)
		if bodyDensity >= tailBodyDensityFloor {
			return tailDensity < bodyDensity/2
		}
	}
	return tailDensity < tailBodyDensityFloor
}

func containsMarkerPhrase(words []string) bool {
	normalized := make([]string, len(words))
	for i, w := range words {
		normalized[i] = normalizeWord(w)
	}
	joined := " " + strings.Join(normalized, " ") + " "
	for _, phrase := range tailMarkerPhrases {
		if strings.Contains(joined, " "+phrase+" ") {
			return true
		}
	}
	return false
}

func longestRunWithoutSentenceEnd(words []string) int {
	longest, run := 0, 0
	for _, w := range words {
		if endsSentence(w) {
			if run > longest {
				longest = run
			}
			run = 0
			continue
		}
		run++
	}
	if run > longest {
		longest = run
	}
	return longest
}

// lastSentenceEnd returns the byte index of the last sentence-terminating
// rune in s, or -1 when there is none.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}
