package main

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ornus/collector/logger"
	"go.uber.org/zap"
)

// TelegramNotifier posts run reports to the admin chat; without a token or chat id it does nothing.
type TelegramNotifier struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	formatter *ReportFormatter
	logger    *zap.Logger
}

func NewTelegramNotifier(apiKey, chatID string, formatter *ReportFormatter, log *zap.Logger) (*TelegramNotifier, error) {
	log = logger.Named(log, "telegram")
	if apiKey == "" || chatID == "" {
		log.Info("Telegram reports disabled")
		return &TelegramNotifier{formatter: formatter, logger: log}, nil
	}

	bot, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegramNotifierWithBot(bot, chatID, formatter, log)
}

func newTelegramNotifierWithBot(bot *tgbotapi.BotAPI, chatID string, formatter *ReportFormatter, log *zap.Logger) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return &TelegramNotifier{
		bot:       bot,
		chatID:    id,
		formatter: formatter,
		logger:    logger.Named(log, "telegram"),
	}, nil
}

func (n *TelegramNotifier) Enabled() bool {
	return n.bot != nil
}

func (n *TelegramNotifier) Send(report *RunReport) error {
	if !n.Enabled() {
		return nil
	}
	return n.SendMessage(n.formatter.Format(report))
}

// SendMessage sends HTML and falls back to plain text when Telegram rejects the markup
func (n *TelegramNotifier) SendMessage(message string) error {
	if !n.Enabled() {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := n.bot.Send(msg)
	if err == nil {
		return nil
	}

	n.logger.Warn("HTML message rejected, retrying as plain text", zap.Error(err))
	plain := tgbotapi.NewMessage(n.chatID, message)
	if _, retryErr := n.bot.Send(plain); retryErr != nil {
		return fmt.Errorf("failed to send telegram message: %w", retryErr)
	}
	return nil
}
