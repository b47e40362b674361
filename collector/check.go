package collector

import (
	"context"

	"github.com/ornus/collector/twitterapi"
)

type KeyStatus struct {
	Consumer string
	OK       bool
	Err      error
}

// CheckKeys probes every credential set with a one-tweet search.
func CheckKeys(ctx context.Context, keys []twitterapi.Credentials, newClient ClientFactory) []KeyStatus {
	statuses := make([]KeyStatus, 0, len(keys))
	for _, creds := range keys {
		status := KeyStatus{Consumer: creds.Masked()}

		client, err := newClient(creds)
		if err == nil {
			_, err = client.SearchTweets(ctx, twitterapi.SearchRequest{Query: probeQuery, Count: 1})
		}
		status.OK = err == nil
		status.Err = err

		statuses = append(statuses, status)
		if ctx.Err() != nil {
			break
		}
	}
	return statuses
}
