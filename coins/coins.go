package coins

import (
	"errors"
	"fmt"
	"strings"
)

const DEFAULT_DATE_FOUNDED = "2008-10-31"

// Quote asset used to price every altcoin before converting to USDT.
const BTC_TICKER = "BTC"
const USDT_PAIR = "BTCUSDT"

var ErrEmptyList = errors.New("cryptocurrency list is empty")

type Cryptocurrency struct {
	Name        string `json:"name"`
	Ticker      string `json:"ticker"`
	DateFounded string `json:"date_founded"`
}

func New(name, ticker string) Cryptocurrency {
	return Cryptocurrency{
		Name:        name,
		Ticker:      strings.ToUpper(ticker),
		DateFounded: DEFAULT_DATE_FOUNDED,
	}
}

func (c Cryptocurrency) String() string {
	return fmt.Sprintf("Cryptocurrency: %s (%s)", c.Name, c.Ticker)
}

// SearchTerm is the phrase used when searching tweets by coin name.
func (c Cryptocurrency) SearchTerm() string {
	return strings.ReplaceAll(c.Name, "_", " ")
}

// Pairing returns the exchange symbol the coin is quoted in.
func (c Cryptocurrency) Pairing() string {
	if c.Ticker == BTC_TICKER {
		return USDT_PAIR
	}
	return c.Ticker + BTC_TICKER
}

func (c Cryptocurrency) IsBitcoin() bool {
	return c.Ticker == BTC_TICKER
}

var defaultRegistry = []Cryptocurrency{
	New("Bitcoin", "BTC"),
	New("Ethereum", "ETH"),
	New("Ripple", "XRP"),
	New("Bitcoin_Cash", "BCHABC"),
	New("Eos", "EOS"),
	New("Stellar", "XLM"),
	New("Litecoin", "LTC"),
	New("Bitcoin_SV", "BCHSV"),
	New("Tron", "TRX"),
	New("Cardano", "ADA"),
	New("Tron", "TRX"),
	New("Iota", "IOTA"),
	New("Binance_Coin", "BNB"),
	New("Monero", "XMR"),
	New("Dash", "DASH"),
	New("NEM", "XEM"),
	New("Ethereum_Classic", "ETC"),
	New("Neo", "NEO"),
	New("Zcash", "ZEC"),
	New("Waves", "WAVES"),
	New("Bitcoin_Gold", "BTG"),
	New("Vechain", "VET"),
	New("True_USD", "TUSD"),
	New("Qtum", "QTUM"),
	New("OmiseGo", "OMG"),
	New("Ziliqa", "ZIL"),
	New("Zcash", "ZEC"),
	New("Ontology", "ONT"),
	New("0x", "ZRX"),
	New("Basic_Attention_Token", "BAT"),
	New("LISK", "LSK"),
	New("Nano", "NANO"),
	New("Decred", "DCR"),
	New("Icon", "ICX"),
}

// Default returns the tracked coins, each name appearing once.
func Default() []Cryptocurrency {
	seen := make(map[string]bool, len(defaultRegistry))
	result := make([]Cryptocurrency, 0, len(defaultRegistry))
	for _, coin := range defaultRegistry {
		if seen[coin.Name] {
			continue
		}
		seen[coin.Name] = true
		result = append(result, coin)
	}
	return result
}

// Parse reads a list in the form "Bitcoin:BTC,Ethereum:ETH".
func Parse(list string) ([]Cryptocurrency, error) {
	result := []Cryptocurrency{}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid coin entry %q, expected Name:TICKER", entry)
		}
		name := strings.TrimSpace(parts[0])
		ticker := strings.TrimSpace(parts[1])
		if name == "" || ticker == "" {
			return nil, fmt.Errorf("invalid coin entry %q, name and ticker are required", entry)
		}
		result = append(result, New(name, ticker))
	}
	if err := Validate(result); err != nil {
		return nil, err
	}
	return result, nil
}

func Validate(list []Cryptocurrency) error {
	if len(list) == 0 {
		return ErrEmptyList
	}
	names := make(map[string]bool, len(list))
	tickers := make(map[string]bool, len(list))
	for _, coin := range list {
		if names[coin.Name] {
			return fmt.Errorf("duplicate coin name %q", coin.Name)
		}
		if tickers[coin.Ticker] {
			return fmt.Errorf("duplicate coin ticker %q", coin.Ticker)
		}
		names[coin.Name] = true
		tickers[coin.Ticker] = true
	}
	return nil
}
