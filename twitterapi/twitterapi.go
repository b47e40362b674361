package twitterapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/ornus/collector/retry"
)

const DEFAULT_BASE_URL = "https://api.twitter.com"
const SEARCH_ENDPOINT = "/1.1/search/tweets.json"

// Search API returns at most this many statuses per request.
const MAX_SEARCH_COUNT = 100

const maxResponseSize = 10 * 1024 * 1024

type SearchClient struct {
	httpClient *http.Client
	baseUrl    string
	consumer   string
}

// Searcher is the subset of the client used by the collector.
type Searcher interface {
	SearchTweets(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

func NewSearchClient(creds Credentials, baseUrl string, proxyDSN string) (*SearchClient, error) {
	if baseUrl == "" {
		baseUrl = DEFAULT_BASE_URL
	}

	transport := &http.Transport{}
	if proxyDSN != "" {
		proxyURL, err := url.Parse(proxyDSN)
		if err != nil {
			return nil, fmt.Errorf("twitter api proxy dsn error: %w", err)
		}

		transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
		}
	}

	base := &http.Client{Transport: transport}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	httpClient := config.Client(ctx, oauth1.NewToken(creds.AccessToken, creds.AccessSecret))
	httpClient.Timeout = 10 * time.Second

	return &SearchClient{
		httpClient: httpClient,
		baseUrl:    baseUrl,
		consumer:   creds.Masked(),
	}, nil
}

func (s *SearchClient) makeRequest(ctx context.Context, uri string, params map[string]string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("error create request: %w", err)
	}

	q := req.URL.Query()
	for key, value := range params {
		if value != "" {
			q.Add(key, value)
		}
	}
	req.URL.RawQuery = q.Encode()

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("error read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, retry.NewHTTPError(resp, bodyBytes)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		RawBody:    bodyBytes,
	}, nil
}

func (s *SearchClient) SearchTweets(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	uri := s.baseUrl + SEARCH_ENDPOINT

	resultType := req.ResultType
	if resultType == "" {
		resultType = RESULT_TYPE_RECENT
	}
	lang := req.Lang
	if lang == "" {
		lang = "en"
	}

	params := map[string]string{
		"q":           req.Query,
		"result_type": resultType,
		"lang":        lang,
		"count":       strconv.Itoa(min(MAX_SEARCH_COUNT, max(1, req.Count))),
		"tweet_mode":  "extended",
		"max_id":      req.MaxID,
	}

	response, err := s.makeRequest(ctx, uri, params)
	if err != nil {
		return nil, fmt.Errorf("error search tweets %q with key %s: %w", req.Query, s.consumer, err)
	}

	return &SearchResponse{APIResponse: *response}, nil
}

// IsRotatable reports whether err means the credential set is unauthorized or rate limited.
func IsRotatable(err error) bool {
	switch retry.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden, 420, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}
