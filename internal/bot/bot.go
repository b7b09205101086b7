package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"joke-server/internal/ai"
	"joke-server/internal/config"
	"joke-server/internal/models"
	"joke-server/internal/service"
	"joke-server/pkg/logger"

	"gopkg.in/telebot.v4"
)

var (
	ErrRateLimited = errors.New("telegram rate limited")
	ErrNoToken     = errors.New("telegram bot token is required")
)

const requestTimeout = 30 * time.Second

type JokeService interface {
	Random(ctx context.Context) (*service.Result, error)
	AI(ctx context.Context) (*service.Result, error)
	Count() int
}

type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	Count(ctx context.Context) (int, error)
}

type StatsSource interface {
	CountBySource(ctx context.Context) (map[models.Source]int, error)
}

type Bot struct {
	settings telebot.Settings
	svc      JokeService
	users    UserStore
	stats    StatsSource
	tbot     *telebot.Bot
}

type Option func(*Bot)

// WithUsers enables user tracking on /start.
func WithUsers(u UserStore) Option {
	return func(b *Bot) {
		b.users = u
	}
}

// WithStats adds served counts to /stats.
func WithStats(s StatsSource) Option {
	return func(b *Bot) {
		b.stats = s
	}
}

func New(cfg config.BotConfig, svc JokeService, opts ...Option) (*Bot, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	b := &Bot{
		svc: svc,
		settings: telebot.Settings{
			Token:  cfg.Token,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run polls Telegram until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	tbot, err := telebot.NewBot(b.settings)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	b.tbot = tbot
	b.setupHandlers(tbot)

	go tbot.Start()
	logger.Info("Telegram bot started", logger.String("username", tbot.Me.Username))

	<-ctx.Done()
	tbot.Stop()
	logger.Info("Telegram bot stopped")
	return nil
}

func (b *Bot) setupHandlers(bot *telebot.Bot) {
	bot.Handle(telebot.OnText, func(c telebot.Context) error {
		logger.Info("Incoming text message",
			logger.Int64("user_id", c.Sender().ID),
			logger.String("username", c.Sender().Username),
		)
		return b.reply(c, "Use /joke to get a joke!")
	})

	bot.Handle("/start", b.handleStart)
	bot.Handle("/joke", b.handleJoke)
	bot.Handle("/ai", b.handleAI)
	bot.Handle("/stats", b.handleStats)
	bot.Handle("/help", b.handleHelp)
}

func (b *Bot) reply(c telebot.Context, text string) error {
	return b.sendMessageWithRetry(c.Chat().ID, text)
}

func (b *Bot) sendMessageWithRetry(chatID int64, text string) error {
	maxRetries := 3
	retryDelay := time.Second

	for i := 0; i < maxRetries; i++ {
		_, err := b.tbot.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{
			ParseMode: telebot.ModeHTML,
		})

		if err != nil {
			if strings.Contains(err.Error(), "Too Many Requests") {
				logger.Warn("Rate limited, retrying...",
					logger.Int("retry", i+1),
					logger.Int("max_retries", maxRetries),
				)
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}
			return fmt.Errorf("failed to send message: %w", err)
		}
		return nil
	}

	return ErrRateLimited
}

func (b *Bot) handleStart(c telebot.Context) error {
	if b.users != nil {
		user := &models.User{
			TelegramID: c.Sender().ID,
			Username:   c.Sender().Username,
			FirstName:  c.Sender().FirstName,
			LastName:   c.Sender().LastName,
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := b.users.Upsert(ctx, user); err != nil {
			logger.Error("Failed to save user", logger.Err(err))
		}
	}

	return b.reply(c, "<b>Welcome to Joke Server!</b>\n\n"+
		"I hand out random jokes from my collection, the web and an AI.\n\n"+
		commandList)
}

func (b *Bot) handleJoke(c telebot.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res, err := b.svc.Random(ctx)
	if err != nil {
		logger.Error("Failed to get joke", logger.Err(err))
		return b.reply(c, "Sorry, no jokes available right now. Try again later!")
	}

	return b.reply(c, formatJoke(res))
}

func (b *Bot) handleAI(c telebot.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	res, err := b.svc.AI(ctx)
	if err != nil {
		return b.reply(c, aiErrorMessage(err))
	}

	return b.reply(c, formatJoke(res))
}

func (b *Bot) handleStats(c telebot.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var served map[models.Source]int
	if b.stats != nil {
		counts, err := b.stats.CountBySource(ctx)
		if err != nil {
			logger.Error("Failed to count served jokes", logger.Err(err))
		}
		served = counts
	}

	users := -1
	if b.users != nil {
		if n, err := b.users.Count(ctx); err == nil {
			users = n
		}
	}

	return b.reply(c, formatStats(b.svc.Count(), served, users))
}

func (b *Bot) handleHelp(c telebot.Context) error {
	return b.reply(c, "<b>Help</b>\n\n"+commandList)
}

const commandList = "Commands:\n" +
	"- /joke - Get a random joke\n" +
	"- /ai - Get a fresh AI-generated joke\n" +
	"- /stats - Bot statistics\n" +
	"- /help - Show this help message"

func formatJoke(res *service.Result) string {
	var sb strings.Builder
	sb.WriteString("<b>Joke</b>\n\n")
	sb.WriteString(html.EscapeString(res.Joke.Text()))
	sb.WriteString("\n\n[")
	sb.WriteString(string(res.Source))
	if res.Joke.Category != "" {
		sb.WriteString(", ")
		sb.WriteString(html.EscapeString(res.Joke.Category))
	}
	sb.WriteString("]")
	return sb.String()
}

func aiErrorMessage(err error) string {
	if errors.Is(err, ai.ErrNotConfigured) {
		return "AI joke generation is not configured."
	}
	logger.Error("Failed to generate AI joke", logger.Err(err))
	return "Unable to generate an AI joke right now. Try again later!"
}

// formatStats renders bot statistics; users < 0 means user tracking is off.
func formatStats(collection int, served map[models.Source]int, users int) string {
	var sb strings.Builder
	sb.WriteString("<b>Bot Statistics</b>\n\n")
	fmt.Fprintf(&sb, "Jokes in collection: %d\n", collection)

	if len(served) > 0 {
		sources := make([]string, 0, len(served))
		for src := range served {
			sources = append(sources, string(src))
		}
		sort.Strings(sources)

		for _, src := range sources {
			fmt.Fprintf(&sb, "Served (%s): %d\n", src, served[models.Source(src)])
		}
	}

	if users >= 0 {
		fmt.Fprintf(&sb, "Total users: %d\n", users)
	}

	return strings.TrimRight(sb.String(), "\n")
}
