package sentiment

import (
	"sync"

	"github.com/jonreiter/govader"
	"github.com/ornus/collector/textclean"
	"github.com/ornus/collector/tweetparser"
)

// Analyzer scores tweet text with the VADER lexicon.
type Analyzer struct {
	mu       sync.Mutex
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Polarity returns the compound score of the cleaned text, in [-1, 1].
func (a *Analyzer) Polarity(text string) float64 {
	cleaned := textclean.CleanForTFIDF(text)
	if cleaned == "" {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzer.PolarityScores(cleaned).Compound
}

// Summary accumulates the sentiment of one coin's tweets.
type Summary struct {
	Count    int
	Positive int
	Negative int
	Total    float64
}

func (s *Summary) Add(score float64) {
	s.Count++
	s.Total += score
	switch {
	case score > 0:
		s.Positive++
	case score < 0:
		s.Negative++
	}
}

func (s *Summary) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Total / float64(s.Count)
}

func (s *Summary) PositiveRatio() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Positive) / float64(s.Count)
}

func (s *Summary) NegativeRatio() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Negative) / float64(s.Count)
}

// Aggregate groups tweet sentiment by coin name.
func Aggregate(tweets []tweetparser.Tweet) map[string]*Summary {
	summaries := make(map[string]*Summary)
	for _, tweet := range tweets {
		summary, ok := summaries[tweet.Coin]
		if !ok {
			summary = &Summary{}
			summaries[tweet.Coin] = summary
		}
		summary.Add(tweet.Sentiment)
	}
	return summaries
}
