package tweetparser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
)

const TWITTER_TIME_LAYOUT = "Mon Jan 02 15:04:05 -0700 2006"

var ErrMissingField = errors.New("required tweet field missing")

type Tweet struct {
	ID        uint64    `json:"id"`
	Text      string    `json:"text"`
	Hashtags  []string  `json:"hashtags"`
	CreatedAt time.Time `json:"date"`
	Retweets  int       `json:"retweets"`
	User      User      `json:"user"`
	Coin      string    `json:"coin,omitempty"`
	Sentiment float64   `json:"sentiment"`
}

type User struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"date_created"`
	Followers int       `json:"followers"`
	Friends   int       `json:"friends"`
}

// ParseSearchResponse extracts every status of a search response body.
// Statuses that fail to parse are skipped; their errors are joined into the returned error.
func ParseSearchResponse(data []byte) ([]Tweet, error) {
	tweets := []Tweet{}
	var parseErrors []string

	_, err := jsonparser.ArrayEach(data, func(status []byte, dataType jsonparser.ValueType, offset int, err error) {
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("status at offset %d: %v", offset, err))
			return
		}
		tweet, err := ParseStatus(status)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("status at offset %d: %v", offset, err))
			return
		}
		tweets = append(tweets, tweet)
	}, "statuses")
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return tweets, nil
		}
		return nil, fmt.Errorf("failed to iterate statuses: %w", err)
	}

	if len(parseErrors) > 0 {
		return tweets, fmt.Errorf("failed to parse %d statuses: %s", len(parseErrors), strings.Join(parseErrors, "; "))
	}
	return tweets, nil
}

// ParseStatus extracts the stored fields of a single status object.
func ParseStatus(status []byte) (Tweet, error) {
	tweet := Tweet{Hashtags: []string{}}

	id, err := parseID(status)
	if err != nil {
		return tweet, fmt.Errorf("tweet id: %w", err)
	}
	tweet.ID = id

	if text, err := jsonparser.GetString(status, "full_text"); err == nil {
		tweet.Text = text
	} else if text, err := jsonparser.GetString(status, "text"); err == nil {
		tweet.Text = text
	}

	createdAtStr, err := jsonparser.GetString(status, "created_at")
	if err != nil {
		return tweet, fmt.Errorf("created_at: %w", ErrMissingField)
	}
	if tweet.CreatedAt, err = ParseTwitterTime(createdAtStr); err != nil {
		return tweet, fmt.Errorf("failed to parse created_at time '%s': %w", createdAtStr, err)
	}

	if retweets, err := jsonparser.GetInt(status, "retweet_count"); err == nil {
		tweet.Retweets = int(retweets)
	}

	jsonparser.ArrayEach(status, func(hashtag []byte, dataType jsonparser.ValueType, offset int, err error) {
		if err != nil {
			return
		}
		if text, err := jsonparser.GetString(hashtag, "text"); err == nil && text != "" {
			tweet.Hashtags = append(tweet.Hashtags, text)
		}
	}, "entities", "hashtags")

	userData, _, _, err := jsonparser.Get(status, "user")
	if err != nil {
		return tweet, fmt.Errorf("user: %w", ErrMissingField)
	}
	if tweet.User, err = parseUser(userData); err != nil {
		return tweet, err
	}

	return tweet, nil
}

func parseUser(data []byte) (User, error) {
	user := User{}

	id, err := parseID(data)
	if err != nil {
		return user, fmt.Errorf("user id: %w", err)
	}
	user.ID = id

	if createdAtStr, err := jsonparser.GetString(data, "created_at"); err == nil {
		if parsed, err := ParseTwitterTime(createdAtStr); err == nil {
			user.CreatedAt = parsed
		}
	}
	if followers, err := jsonparser.GetInt(data, "followers_count"); err == nil {
		user.Followers = int(followers)
	}
	if friends, err := jsonparser.GetInt(data, "friends_count"); err == nil {
		user.Friends = int(friends)
	}

	return user, nil
}

// parseID prefers id_str: numeric ids above 2^53 lose precision in most JSON encoders.
func parseID(data []byte) (uint64, error) {
	if idStr, err := jsonparser.GetString(data, "id_str"); err == nil && idStr != "" {
		return strconv.ParseUint(idStr, 10, 64)
	}
	raw, dataType, _, err := jsonparser.Get(data, "id")
	if err != nil || dataType != jsonparser.Number {
		return 0, ErrMissingField
	}
	return strconv.ParseUint(string(raw), 10, 64)
}

func ParseTwitterTime(timeStr string) (time.Time, error) {
	return time.Parse(TWITTER_TIME_LAYOUT, timeStr)
}

// FormatDate renders year-month-day without zero padding, e.g. 2014-4-25.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}
