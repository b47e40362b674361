package main

import (
	"time"
)

// CryptocurrencyModel is a tracked coin
type CryptocurrencyModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name        string `gorm:"column:name;size:64;uniqueIndex;not null" json:"name"`
	Ticker      string `gorm:"column:ticker;size:16;uniqueIndex;not null" json:"ticker"`
	DateFounded string `gorm:"column:date_founded;size:10" json:"date_founded"`
}

func (CryptocurrencyModel) TableName() string {
	return "cryptocurrencies"
}

// TwitterUserModel keeps the author snapshot seen when the tweet was pulled
type TwitterUserModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement:false;column:id" json:"id"` // Twitter user id
	DateCreated time.Time `gorm:"column:date_created" json:"date_created"`
	Followers   int       `gorm:"column:followers" json:"followers"`
	Friends     int       `gorm:"column:friends" json:"friends"`
}

func (TwitterUserModel) TableName() string {
	return "twitter_users"
}

type TweetModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement:false;column:id" json:"id"` // Twitter status id
	Date      time.Time `gorm:"column:date;index" json:"date"`
	Content   string    `gorm:"column:content;size:1120" json:"content"`
	CoinID    uint      `gorm:"column:coin_id;index;not null" json:"coin_id"`
	Sentiment float64   `gorm:"column:sentiment" json:"sentiment"`
	UserID    uint64    `gorm:"column:user_id;index" json:"user_id"`
	Retweets  int       `gorm:"column:retweets" json:"retweets"`

	Coin CryptocurrencyModel `gorm:"foreignKey:CoinID" json:"-"`
	User TwitterUserModel    `gorm:"foreignKey:UserID" json:"-"`
}

func (TweetModel) TableName() string {
	return "tweets"
}

type HashtagModel struct {
	ID   uint   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name string `gorm:"column:name;size:280;uniqueIndex;not null" json:"name"`
}

func (HashtagModel) TableName() string {
	return "hashtags"
}

type TweetHashtagModel struct {
	TweetID   uint64 `gorm:"primaryKey;autoIncrement:false;column:tweet_id" json:"tweet_id"`
	HashtagID uint   `gorm:"primaryKey;autoIncrement:false;column:hashtag_id" json:"hashtag_id"`

	Tweet   TweetModel   `gorm:"foreignKey:TweetID" json:"-"`
	Hashtag HashtagModel `gorm:"foreignKey:HashtagID" json:"-"`
}

func (TweetHashtagModel) TableName() string {
	return "tweet_hashtag"
}

// MarketDataModel is one coin's daily bar in USDT with that day's tweet sentiment
type MarketDataModel struct {
	CoinID                 uint      `gorm:"primaryKey;autoIncrement:false;column:coin_id" json:"coin_id"`
	Date                   time.Time `gorm:"primaryKey;column:date;type:date" json:"date"`
	Open                   float64   `gorm:"column:open" json:"open"`
	High                   float64   `gorm:"column:high" json:"high"`
	Low                    float64   `gorm:"column:low" json:"low"`
	Close                  float64   `gorm:"column:close" json:"close"`
	Volume                 float64   `gorm:"column:volume" json:"volume"`
	NumTrades              int64     `gorm:"column:num_trades" json:"num_trades"`
	PositiveTweetSentiment float64   `gorm:"column:positive_tweet_sentiment" json:"positive_tweet_sentiment"`
	NegativeTweetSentiment float64   `gorm:"column:negative_tweet_sentiment" json:"negative_tweet_sentiment"`
	AverageTweetSentiment  float64   `gorm:"column:average_tweet_sentiment" json:"average_tweet_sentiment"`
	TweetCount             int       `gorm:"column:tweet_count" json:"tweet_count"`

	Coin CryptocurrencyModel `gorm:"foreignKey:CoinID" json:"-"`
}

func (MarketDataModel) TableName() string {
	return "market_data"
}

// TweetExportRow is a tweet joined with its coin name, as written to CSV
type TweetExportRow struct {
	ID        uint64
	Date      time.Time
	Coin      string
	Sentiment float64
	Retweets  int
	UserID    uint64
	Content   string
}
