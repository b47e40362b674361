package main

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const MAX_REPORT_FAILURES = 10

type ReportFormatter struct{}

func NewReportFormatter() *ReportFormatter {
	return &ReportFormatter{}
}

// Format renders a run report as Telegram HTML
func (rf *ReportFormatter) Format(report *RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>DAILY COLLECTION - %s</b>\n", rf.getStatusEmoji(report.Status), strings.ToUpper(report.Status))
	fmt.Fprintf(&b, "📅 <b>Day:</b> %s\n", report.Day.Format("2006-01-02"))
	fmt.Fprintf(&b, "⏱ <b>Duration:</b> %s\n", rf.formatDuration(report.Duration()))
	fmt.Fprintf(&b, "🐦 <b>Tweets:</b> %d pulled, %d new, %d duplicates\n",
		report.TweetsPulled, report.TweetsInserted, report.Duplicates)
	fmt.Fprintf(&b, "📈 <b>Market data:</b> %d/%d coins\n", report.MarketDataRows, len(report.Coins))

	if len(report.Coins) > 0 {
		b.WriteString("\n<b>Coins:</b>\n")
		for _, coin := range report.Coins {
			b.WriteString(rf.formatCoin(coin))
			b.WriteString("\n")
		}
	}

	if report.Err != nil {
		fmt.Fprintf(&b, "\n❌ <b>Error:</b> <i>%s</i>\n", html.EscapeString(rf.truncateText(report.Err.Error(), 300)))
	}

	if len(report.Failures) > 0 {
		fmt.Fprintf(&b, "\n⚠️ <b>Failures (%d):</b>\n", len(report.Failures))
		for i, failure := range report.Failures {
			if i == MAX_REPORT_FAILURES {
				fmt.Fprintf(&b, "• ... and %d more\n", len(report.Failures)-MAX_REPORT_FAILURES)
				break
			}
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(rf.truncateText(failure, 200)))
		}
	}

	fmt.Fprintf(&b, "\n🆔 <code>%s</code>", report.RunUUID)
	return b.String()
}

func (rf *ReportFormatter) formatCoin(coin CoinReport) string {
	line := fmt.Sprintf("%s <b>%s</b>: %d tweets, avg %+.3f (%.0f%% pos / %.0f%% neg)",
		rf.getSentimentEmoji(coin.Average, coin.Tweets),
		html.EscapeString(coin.Coin),
		coin.Tweets,
		coin.Average,
		coin.PositiveRatio*100,
		coin.NegativeRatio*100)
	if coin.HasMarketData {
		line += fmt.Sprintf(", close $%.4f", coin.Close)
	}
	return line
}

func (rf *ReportFormatter) getStatusEmoji(status string) string {
	switch status {
	case RUN_STATUS_COMPLETED:
		return "✅"
	case RUN_STATUS_PARTIAL:
		return "⚠️"
	case RUN_STATUS_FAILED:
		return "🚨"
	default:
		return "⏳"
	}
}

func (rf *ReportFormatter) getSentimentEmoji(average float64, tweets int) string {
	switch {
	case tweets == 0:
		return "⚪"
	case average > 0.05:
		return "🟢"
	case average < -0.05:
		return "🔴"
	default:
		return "🟡"
	}
}

func (rf *ReportFormatter) truncateText(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength-3]) + "..."
}

func (rf *ReportFormatter) formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
