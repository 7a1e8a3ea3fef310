// Package telegram serves the chat runner to Telegram users over long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sourcegraph/conc"

	"github.com/chat-food/server/internal/agent/graph"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

const (
	GreetingMessage = "Hi! I can check, cancel or comment on your orders, find foods and restaurants, suggest something to eat and answer food questions. What would you like?"
	ResetMessage    = "Conversation cleared. Let's start over."
	FailureMessage  = "Sorry, I couldn't process that message. Please try again."
)

type Config struct {
	Token          string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	PollingTimeout int           `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"60"`
	EditInterval   time.Duration `envconfig:"TELEGRAM_EDIT_INTERVAL" default:"1s"`
}

// sender is the part of *tgbotapi.BotAPI used to reply.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api       *tgbotapi.BotAPI
	sender    sender
	runner    graph.Runner
	timeout   int
	editEvery time.Duration
}

func New(cfg Config, runner graph.Runner) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logx.Info().Str("bot", api.Self.UserName).Msg("telegram bot authorized")
	return &Bot{api: api, sender: api, runner: runner, timeout: cfg.PollingTimeout, editEvery: cfg.EditInterval}, nil
}

// SessionID maps a Telegram chat to a conversation session.
func SessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// Start polls for updates until ctx is done. Every update is handled on its
// own goroutine; turns of one chat are serialized by the runner.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	var wg conc.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			msg := update.Message
			wg.Go(func() { b.handleMessage(ctx, msg) })
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	sessionID := SessionID(chatID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.reply(chatID, GreetingMessage)
			return
		case "reset":
			if err := b.runner.Reset(ctx, sessionID); err != nil {
				logx.Error().Err(err).Str("session_id", sessionID).Msg("reset failed")
				b.reply(chatID, FailureMessage)
				return
			}
			b.reply(chatID, ResetMessage)
			return
		}
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	live := &liveMessage{bot: b, chatID: chatID}
	reply, err := b.runner.Stream(ctx, model.QueryInput{SessionID: sessionID, Query: text}, live.append)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("telegram turn failed")
		live.finish(FailureMessage)
		return
	}
	live.finish(reply.Text)
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(chatID, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(chatID int64, c tgbotapi.Chattable) (tgbotapi.Message, bool) {
	m, err := b.sender.Send(c)
	if err != nil {
		logx.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
		return m, false
	}
	return m, true
}

// liveMessage shows an answer while it is written: the first chunk is sent
// as a new message which later chunks edit, at most once per editEvery.
type liveMessage struct {
	bot    *Bot
	chatID int64

	mu       sync.Mutex
	text     strings.Builder
	shown    string
	msgID    int
	lastEdit time.Time
}

func (l *liveMessage) append(chunk string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.text.WriteString(chunk)
	if l.msgID != 0 && time.Since(l.lastEdit) < l.bot.editEvery {
		return
	}
	l.show(l.text.String())
}

// finish makes the message read text, sending it when nothing was shown yet.
func (l *liveMessage) finish(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.show(text)
}

func (l *liveMessage) show(text string) {
	text = strings.TrimSpace(text)
	if text == "" || text == l.shown {
		return
	}
	if l.msgID == 0 {
		m, ok := l.bot.send(l.chatID, tgbotapi.NewMessage(l.chatID, text))
		if !ok {
			return
		}
		l.msgID = m.MessageID
	} else if _, ok := l.bot.send(l.chatID, tgbotapi.NewEditMessageText(l.chatID, l.msgID, text)); !ok {
		return
	}
	l.shown = text
	l.lastEdit = time.Now()
}
