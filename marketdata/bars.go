package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
	"github.com/ornus/collector/coins"
	"go.uber.org/zap"
)

var ErrNoBar = errors.New("no bar for requested day")

type Bar struct {
	OpenTime         time.Time
	CloseTime        time.Time
	Open             float64
	High             float64
	Low              float64
	Close            float64
	Volume           float64
	QuoteAssetVolume float64
	NumTrades        int64
	TakerBaseVolume  float64
	TakerQuoteVolume float64
}

// Kline arrays: open time, open, high, low, close, volume, close time,
// quote asset volume, number of trades, taker base volume, taker quote volume, ignore.
const klineFields = 11

// ParseKlines decodes the klines endpoint's array of arrays.
func ParseKlines(data []byte) ([]Bar, error) {
	bars := []Bar{}
	var parseErr error

	_, err := jsonparser.ArrayEach(data, func(kline []byte, dataType jsonparser.ValueType, offset int, err error) {
		if parseErr != nil {
			return
		}
		if err != nil || dataType != jsonparser.Array {
			parseErr = fmt.Errorf("kline at offset %d is not an array", offset)
			return
		}
		bar, err := parseKline(kline)
		if err != nil {
			parseErr = fmt.Errorf("kline at offset %d: %w", offset, err)
			return
		}
		bars = append(bars, bar)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate klines: %w", err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return bars, nil
}

func parseKline(kline []byte) (Bar, error) {
	values := make([]string, 0, 12)
	_, err := jsonparser.ArrayEach(kline, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		values = append(values, string(value))
	})
	if err != nil {
		return Bar{}, err
	}
	if len(values) < klineFields {
		return Bar{}, fmt.Errorf("expected %d fields, got %d", klineFields, len(values))
	}

	bar := Bar{}
	var ms int64
	if ms, err = strconv.ParseInt(values[0], 10, 64); err != nil {
		return bar, fmt.Errorf("open time: %w", err)
	}
	bar.OpenTime = time.UnixMilli(ms).UTC()
	if ms, err = strconv.ParseInt(values[6], 10, 64); err != nil {
		return bar, fmt.Errorf("close time: %w", err)
	}
	bar.CloseTime = time.UnixMilli(ms).UTC()
	if bar.NumTrades, err = strconv.ParseInt(values[8], 10, 64); err != nil {
		return bar, fmt.Errorf("number of trades: %w", err)
	}

	floats := []struct {
		index int
		dest  *float64
	}{
		{1, &bar.Open}, {2, &bar.High}, {3, &bar.Low}, {4, &bar.Close}, {5, &bar.Volume},
		{7, &bar.QuoteAssetVolume}, {9, &bar.TakerBaseVolume}, {10, &bar.TakerQuoteVolume},
	}
	for _, f := range floats {
		if *f.dest, err = strconv.ParseFloat(values[f.index], 64); err != nil {
			return bar, fmt.Errorf("field %d: %w", f.index, err)
		}
	}

	return bar, nil
}

// FindBar returns the bar opening on day (UTC).
func FindBar(bars []Bar, day time.Time) (Bar, error) {
	y, m, d := day.UTC().Date()
	for _, bar := range bars {
		by, bm, bd := bar.OpenTime.Date()
		if by == y && bm == m && bd == d {
			return bar, nil
		}
	}
	return Bar{}, fmt.Errorf("%s: %w", day.UTC().Format("2006-01-02"), ErrNoBar)
}

// DailyMarketData returns the coin's daily bar for day priced in USDT.
// Altcoin prices are converted through BTCUSDT; volume and trade count stay in the pair's units.
func (c *Client) DailyMarketData(ctx context.Context, coin coins.Cryptocurrency, day time.Time) (Bar, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	request := KlineRequest{Interval: INTERVAL_DAILY, StartTime: dayStart, Limit: 1}

	request.Symbol = coins.USDT_PAIR
	btcBars, err := c.Klines(ctx, request)
	if err != nil {
		return Bar{}, err
	}
	btc, err := FindBar(btcBars, dayStart)
	if err != nil {
		return Bar{}, fmt.Errorf("%s %w", coins.USDT_PAIR, err)
	}

	if coin.IsBitcoin() {
		return btc, nil
	}

	request.Symbol = coin.Pairing()
	pairBars, err := c.Klines(ctx, request)
	if err != nil {
		return Bar{}, err
	}
	bar, err := FindBar(pairBars, dayStart)
	if err != nil {
		return Bar{}, fmt.Errorf("%s %w", coin.Pairing(), err)
	}

	bar.Open *= btc.Open
	bar.High *= btc.High
	bar.Low *= btc.Low
	bar.Close *= btc.Close

	c.logger.Debug("Converted daily bar",
		zap.String("coin", coin.Name),
		zap.String("pair", coin.Pairing()),
		zap.Float64("close_usdt", bar.Close))

	return bar, nil
}
