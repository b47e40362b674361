package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	ChatID    string
	Text      string
	ParseMode string
}

type fakeTelegram struct {
	mu         sync.Mutex
	sent       []sentMessage
	rejectHTML bool
}

func (f *fakeTelegram) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"b","username":"b"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		r.ParseForm()
		msg := sentMessage{
			ChatID:    r.FormValue("chat_id"),
			Text:      r.FormValue("text"),
			ParseMode: r.FormValue("parse_mode"),
		}
		f.mu.Lock()
		f.sent = append(f.sent, msg)
		f.mu.Unlock()
		if f.rejectHTML && msg.ParseMode == tgbotapi.ModeHTML {
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":5,"type":"private"},"date":0,"text":"x"}}`)
	default:
		http.NotFound(w, r)
	}
}

func setupTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)

	bot, err := tgbotapi.NewBotAPIWithClient("token", server.URL+"/bot%s/%s", server.Client())
	require.NoError(t, err)

	notifier, err := newTelegramNotifierWithBot(bot, "5", NewReportFormatter(), zap.NewNop())
	require.NoError(t, err)
	return notifier
}

func testReport() *RunReport {
	started := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	return &RunReport{
		RunUUID:        "run-1",
		Day:            started,
		StartedAt:      started,
		FinishedAt:     started.Add(95 * time.Second),
		TweetsPulled:   12,
		TweetsInserted: 10,
		Duplicates:     2,
		MarketDataRows: 1,
		Status:         RUN_STATUS_PARTIAL,
		Coins: []CoinReport{
			{Coin: "Bitcoin", Tweets: 10, Average: 0.2, PositiveRatio: 0.6, NegativeRatio: 0.1, Close: 3800, HasMarketData: true},
			{Coin: "Ethereum", Tweets: 2, Average: -0.3, NegativeRatio: 1},
		},
		Failures: []string{"Ethereum market data: bar <missing>"},
	}
}

func TestReportFormatter_Format(t *testing.T) {
	message := NewReportFormatter().Format(testReport())

	assert.Contains(t, message, "⚠️ <b>DAILY COLLECTION - PARTIAL</b>")
	assert.Contains(t, message, "<b>Day:</b> 2019-01-02")
	assert.Contains(t, message, "<b>Duration:</b> 1m35s")
	assert.Contains(t, message, "12 pulled, 10 new, 2 duplicates")
	assert.Contains(t, message, "🟢 <b>Bitcoin</b>: 10 tweets, avg +0.200 (60% pos / 10% neg), close $3800.0000")
	assert.Contains(t, message, "🔴 <b>Ethereum</b>: 2 tweets, avg -0.300 (0% pos / 100% neg)")
	assert.Contains(t, message, "bar &lt;missing&gt;")
	assert.Contains(t, message, "<code>run-1</code>")
}

func TestReportFormatter_FailureListCapped(t *testing.T) {
	report := testReport()
	report.Failures = nil
	for i := 0; i < MAX_REPORT_FAILURES+3; i++ {
		report.Failures = append(report.Failures, fmt.Sprintf("failure %d", i))
	}
	report.Err = errors.New("context canceled")
	report.Status = RUN_STATUS_FAILED

	message := NewReportFormatter().Format(report)
	assert.Contains(t, message, "🚨 <b>DAILY COLLECTION - FAILED</b>")
	assert.Contains(t, message, "<i>context canceled</i>")
	assert.Contains(t, message, "• ... and 3 more")
	assert.NotContains(t, message, fmt.Sprintf("failure %d", MAX_REPORT_FAILURES))
}

func TestTelegramNotifier_Send(t *testing.T) {
	fake := &fakeTelegram{}
	notifier := setupTestNotifier(t, fake)

	require.NoError(t, notifier.Send(testReport()))

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "5", fake.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, fake.sent[0].ParseMode)
	assert.Contains(t, fake.sent[0].Text, "DAILY COLLECTION")
}

func TestTelegramNotifier_FallsBackToPlainText(t *testing.T) {
	fake := &fakeTelegram{rejectHTML: true}
	notifier := setupTestNotifier(t, fake)

	require.NoError(t, notifier.SendMessage("<b>broken"))

	require.Len(t, fake.sent, 2)
	assert.Equal(t, "", fake.sent[1].ParseMode)
	assert.Equal(t, "<b>broken", fake.sent[1].Text)
}

func TestTelegramNotifier_DisabledWithoutCredentials(t *testing.T) {
	notifier, err := NewTelegramNotifier("", "", NewReportFormatter(), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, notifier.Enabled())
	assert.NoError(t, notifier.Send(testReport()))
}

func TestTelegramNotifier_InvalidChatID(t *testing.T) {
	_, err := newTelegramNotifierWithBot(&tgbotapi.BotAPI{}, "admins", NewReportFormatter(), zap.NewNop())
	assert.Error(t, err)
}
