package twitterapi

import (
	"github.com/ornus/collector/tweetparser"
)

const RESULT_TYPE_RECENT = "recent"

type Credentials struct {
	AccessToken    string `json:"ACCESS_TOKEN" mapstructure:"access_token"`
	AccessSecret   string `json:"ACCESS_SECRET" mapstructure:"access_secret"`
	ConsumerKey    string `json:"CONSUMER_KEY" mapstructure:"consumer_key"`
	ConsumerSecret string `json:"CONSUMER_SECRET" mapstructure:"consumer_secret"`
}

func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.AccessSecret != "" && c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// Masked shows only the last 4 characters of the consumer key.
func (c Credentials) Masked() string {
	if len(c.ConsumerKey) <= 4 {
		return "****"
	}
	return "..." + c.ConsumerKey[len(c.ConsumerKey)-4:]
}

type SearchRequest struct {
	Query      string
	ResultType string
	Lang       string
	Count      int
	MaxID      string
}

type APIResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	RawBody    []byte              `json:"raw_body"`
}

type SearchResponse struct {
	APIResponse
}

func (r *SearchResponse) Tweets() ([]tweetparser.Tweet, error) {
	return tweetparser.ParseSearchResponse(r.RawBody)
}
