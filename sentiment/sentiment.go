package sentiment

import (
	"strings"
	"unicode"
)

// Score is the result of analyzing a piece of text. Polarity is in
// [-1, 1], subjectivity in [0, 1].
type Score struct {
	Polarity     float64
	Subjectivity float64
	Words        int
	Sentences    int
}

// Scorer turns free text into a sentiment score. The rest of the system
// treats the scorer as a black box so tests can substitute a fixed one.
type Scorer interface {
	Analyze(text string) Score
}

// entry is the lexicon record for a single word.
type entry struct {
	polarity     float64
	subjectivity float64
}

// lexicon is a compact polarity/subjectivity word list. It only needs to
// be stable, not exhaustive: the aggregates built on top of it compare
// submissions against each other using the same scorer.
var lexicon = map[string]entry{
	"amazing":     {0.6, 0.9},
	"awesome":     {0.7, 0.9},
	"awful":       {-0.7, 0.8},
	"bad":         {-0.5, 0.6},
	"beautiful":   {0.7, 0.8},
	"best":        {0.8, 0.5},
	"boring":      {-0.5, 0.8},
	"brilliant":   {0.7, 0.8},
	"broken":      {-0.4, 0.4},
	"cool":        {0.4, 0.7},
	"crazy":       {-0.2, 0.9},
	"cute":        {0.5, 0.8},
	"dead":        {-0.4, 0.3},
	"disgusting":  {-0.8, 0.9},
	"dumb":        {-0.6, 0.8},
	"excellent":   {0.8, 0.8},
	"fail":        {-0.5, 0.5},
	"fake":        {-0.5, 0.6},
	"fantastic":   {0.7, 0.9},
	"favorite":    {0.6, 0.8},
	"free":        {0.3, 0.4},
	"fun":         {0.5, 0.7},
	"funny":       {0.4, 0.8},
	"good":        {0.5, 0.6},
	"great":       {0.6, 0.7},
	"happy":       {0.6, 0.8},
	"hate":        {-0.7, 0.8},
	"horrible":    {-0.8, 0.9},
	"impressive":  {0.6, 0.7},
	"incredible":  {0.7, 0.9},
	"interesting": {0.4, 0.6},
	"kill":        {-0.6, 0.4},
	"lie":         {-0.5, 0.6},
	"love":        {0.6, 0.7},
	"mad":         {-0.5, 0.7},
	"nice":        {0.5, 0.7},
	"pathetic":    {-0.7, 0.9},
	"perfect":     {0.9, 0.7},
	"poor":        {-0.4, 0.5},
	"pretty":      {0.4, 0.7},
	"proud":       {0.5, 0.7},
	"right":       {0.3, 0.4},
	"sad":         {-0.5, 0.8},
	"scary":       {-0.5, 0.8},
	"sick":        {-0.4, 0.7},
	"stupid":      {-0.7, 0.9},
	"terrible":    {-0.8, 0.9},
	"ugly":        {-0.6, 0.8},
	"useless":     {-0.6, 0.8},
	"win":         {0.5, 0.4},
	"wonderful":   {0.7, 0.9},
	"worst":       {-0.8, 0.6},
	"wrong":       {-0.4, 0.5},
}

// intensifiers scale the polarity of the word that follows them.
var intensifiers = map[string]float64{
	"absolutely": 1.4,
	"barely":     0.6,
	"extremely":  1.5,
	"really":     1.3,
	"slightly":   0.7,
	"so":         1.2,
	"totally":    1.4,
	"very":       1.3,
}

// negations flip the polarity of the word that follows them.
var negations = map[string]bool{
	"no":      true,
	"not":     true,
	"never":   true,
	"nobody":  true,
	"nothing": true,
	"cannot":  true,
	"cant":    true,
	"dont":    true,
	"doesnt":  true,
	"isnt":    true,
	"wasnt":   true,
	"wont":    true,
}

// Analyzer is the built-in lexicon scorer.
type Analyzer struct{}

// NewAnalyzer returns the default text scorer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scores a piece of text. Polarity and subjectivity are the
// averages over all lexicon hits; a text with no hits scores neutral.
func (a *Analyzer) Analyze(text string) Score {
	words := tokenize(text)

	var polaritySum, subjectivitySum float64
	hits := 0

	negate := false
	scale := 1.0

	for _, word := range words {
		if negations[word] {
			negate = true
			continue
		}
		if factor, ok := intensifiers[word]; ok {
			scale *= factor
			continue
		}

		e, ok := lexicon[word]
		if ok {
			polarity := e.polarity * scale
			if negate {
				polarity = -0.5 * polarity
			}
			polaritySum += clamp(polarity, -1, 1)
			subjectivitySum += e.subjectivity
			hits++
		}

		// modifiers only reach across a single word
		negate = false
		scale = 1.0
	}

	score := Score{
		Words:     len(words),
		Sentences: countSentences(text),
	}
	if hits > 0 {
		score.Polarity = polaritySum / float64(hits)
		score.Subjectivity = subjectivitySum / float64(hits)
	}

	return score
}

// CountLetters returns the number of ASCII letters in a text.
func CountLetters(text string) int {
	count := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			count++
		}
	}
	return count
}

// tokenize splits text into lowercased words, dropping punctuation.
// Apostrophes are removed rather than split on, so "don't" matches the
// lexicon entry "dont".
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			return unicode.ToLower(r)
		case r == '\'' || r == '’':
			return -1
		default:
			return ' '
		}
	}, text)

	return strings.Fields(cleaned)
}

// countSentences counts terminator-separated sentence fragments that
// contain at least one letter or digit. A text without terminators is a
// single sentence.
func countSentences(text string) int {
	count := 0
	hasContent := false

	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			if hasContent {
				count++
				hasContent = false
			}
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			hasContent = true
		}
	}
	if hasContent {
		count++
	}

	return count
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
