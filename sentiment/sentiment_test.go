package sentiment

import (
	"testing"

	"github.com/ornus/collector/tweetparser"
	"github.com/stretchr/testify/assert"
)

func TestAnalyzer_Polarity(t *testing.T) {
	analyzer := NewAnalyzer()

	assert.Greater(t, analyzer.Polarity("I love bitcoin, it is great!"), 0.0)
	assert.Less(t, analyzer.Polarity("I hate this scam, terrible and awful"), 0.0)
	assert.Equal(t, 0.0, analyzer.Polarity(""))
	assert.Equal(t, 0.0, analyzer.Polarity("!!!"))

	score := analyzer.Polarity("best day ever :) #BTC https://t.co/x")
	assert.GreaterOrEqual(t, score, -1.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestSummary(t *testing.T) {
	summary := &Summary{}
	assert.Equal(t, 0.0, summary.Average())
	assert.Equal(t, 0.0, summary.PositiveRatio())
	assert.Equal(t, 0.0, summary.NegativeRatio())

	for _, score := range []float64{0.5, -0.25, 0, 0.75} {
		summary.Add(score)
	}

	assert.Equal(t, 4, summary.Count)
	assert.InDelta(t, 0.25, summary.Average(), 1e-9)
	assert.InDelta(t, 0.5, summary.PositiveRatio(), 1e-9)
	assert.InDelta(t, 0.25, summary.NegativeRatio(), 1e-9)
}

func TestAggregate(t *testing.T) {
	tweets := []tweetparser.Tweet{
		{ID: 1, Coin: "Bitcoin", Sentiment: 0.4},
		{ID: 2, Coin: "Bitcoin", Sentiment: -0.2},
		{ID: 3, Coin: "Ethereum", Sentiment: 0.1},
	}

	summaries := Aggregate(tweets)
	assert.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries["Bitcoin"].Count)
	assert.InDelta(t, 0.1, summaries["Bitcoin"].Average(), 1e-9)
	assert.Equal(t, 1, summaries["Ethereum"].Positive)
}
