// Package bot is the Telegram transport: it turns inbound messages
// into media requests, drives the resolver, and delivers the result
// back to the chat. It owns every transport-side concern (status
// message edits, captions, error replies) so the resolver stays free of
// chat semantics.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tikrelay/tikrelay/internal/config"
	"github.com/tikrelay/tikrelay/internal/domain"
	"github.com/tikrelay/tikrelay/internal/history"
	"github.com/tikrelay/tikrelay/internal/resolver"
)

// Resolver is the slice of the resolution pipeline the bot drives.
// *resolver.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error)
	Package(req domain.MediaRequest, result domain.ResolutionResult) (domain.DeliveryPackage, error)
	Cleanup(requestID string)
}

// Recorder is the slice of the delivery log the bot emits to.
// *history.Store satisfies it. Fire-and-forget by contract.
type Recorder interface {
	Record(ctx context.Context, e history.Event) error
	SeenRecently(ctx context.Context, chatID int64, link string) (bool, error)
}

// sender abstracts the Telegram API surface the bot uses, so handler
// logic is testable without a live bot session.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot relays platform links posted in chats.
type Bot struct {
	api            *tgbotapi.BotAPI
	tg             sender
	resolver       Resolver
	recorder       Recorder
	updateTimeout  int
	requestTimeout time.Duration
	logger         *slog.Logger
}

// New connects the bot session.
func New(cfg config.TelegramConfig, res Resolver, rec Recorder, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot session: %w", err)
	}

	logger.Info("bot session established", "username", api.Self.UserName)

	return &Bot{
		api:            api,
		tg:             api,
		resolver:       res,
		recorder:       rec,
		updateTimeout:  cfg.UpdateTimeout,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
	}, nil
}

// Run consumes updates until ctx is cancelled. Each message is handled
// on its own goroutine; per-request filesystem isolation makes that
// safe.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopping")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	link := strings.TrimSpace(msg.Text)
	if link == "" {
		return
	}
	if !domain.IsSupportedLink(link) {
		b.reply(msg, "Please send a valid TikTok link!")
		return
	}

	req, err := domain.NewMediaRequest(link)
	if err != nil {
		b.reply(msg, "Please send a valid TikTok link!")
		return
	}

	logger := b.logger.With("request_id", req.ID, "chat_id", msg.Chat.ID, "kind", req.Kind)
	logger.Info("link accepted", "link", link)
	b.record(ctx, msg, req, history.StatusAccepted)

	if seen, err := b.recorder.SeenRecently(ctx, msg.Chat.ID, link); err == nil && seen {
		b.reply(msg, "Already sent this one here recently. Scroll up!")
		b.record(ctx, msg, req, history.StatusDuplicate)
		return
	}

	status := b.reply(msg, "Analyzing link...")

	runCtx := ctx
	if b.requestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}

	switch req.Kind {
	case domain.KindSlideshow:
		b.editStatus(msg.Chat.ID, status, "Downloading photo(s)...")
	default:
		b.editStatus(msg.Chat.ID, status, "Downloading video (no watermark)...")
	}

	result, err := b.resolver.Resolve(runCtx, req)
	if err != nil {
		logger.Warn("resolution failed", "error", err)
		b.editStatus(msg.Chat.ID, status, failureText(err))
		b.record(ctx, msg, req, history.FailedStatus(failureReason(err)))
		return
	}

	pkg, err := b.resolver.Package(req, result)
	if err != nil {
		logger.Warn("packaging failed", "error", err)
		b.editStatus(msg.Chat.ID, status, failureText(err))
		b.record(ctx, msg, req, history.FailedStatus(failureReason(err)))
		return
	}
	defer b.resolver.Cleanup(req.ID)

	if err := b.deliver(msg.Chat.ID, pkg); err != nil {
		logger.Warn("delivery failed", "error", err)
		b.editStatus(msg.Chat.ID, status, "Failed to send the media. Please try again.")
		b.record(ctx, msg, req, history.FailedStatus("transport send failed"))
		return
	}

	b.deleteStatus(msg.Chat.ID, status)
	logger.Info("delivered", "strategy", pkg.Strategy, "assets", pkg.AssetCount)
	b.record(ctx, msg, req, history.SentStatus(string(pkg.Strategy)))
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.reply(msg, welcomeText)
	}
}

func (b *Bot) deliver(chatID int64, pkg domain.DeliveryPackage) error {
	switch pkg.Mode {
	case domain.PackageSingleFile:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(pkg.Path))
		video.Caption = "Your TikTok video (no watermark)!"
		_, err := b.tg.Send(video)
		return err
	default:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(pkg.Path))
		doc.Caption = "Here are your TikTok photos + music!"
		_, err := b.tg.Send(doc)
		return err
	}
}

// reply sends a plain reply and returns its message ID (0 on failure).
func (b *Bot) reply(msg *tgbotapi.Message, text string) int {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	sent, err := b.tg.Send(reply)
	if err != nil {
		b.logger.Warn("reply failed", "chat_id", msg.Chat.ID, "error", err)
		return 0
	}
	return sent.MessageID
}

func (b *Bot) editStatus(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	if _, err := b.tg.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Warn("status edit failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) deleteStatus(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.tg.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.logger.Warn("status delete failed", "chat_id", chatID, "error", err)
	}
}

// record emits a usage event. Log failures are logged and dropped; the
// delivery log must never fail a resolution.
func (b *Bot) record(ctx context.Context, msg *tgbotapi.Message, req domain.MediaRequest, status string) {
	e := history.Event{
		ChatID:    msg.Chat.ID,
		Link:      req.URL,
		Platform:  domain.Platform,
		MediaType: string(req.Kind),
		Status:    status,
	}
	if msg.From != nil {
		e.UserID = msg.From.ID
		e.Username = msg.From.UserName
	}
	if err := b.recorder.Record(ctx, e); err != nil {
		b.logger.Warn("usage event dropped", "request_id", req.ID, "error", err)
	}
}

var _ Resolver = (*resolver.Resolver)(nil)
var _ Recorder = (*history.Store)(nil)
