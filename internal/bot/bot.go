package bot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"dadchain/internal/config"
	"dadchain/internal/ledger"
	"dadchain/internal/models"
	"dadchain/internal/node"
	"dadchain/internal/queue"
	"dadchain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/telebot.v4"
)

const (
	ConsumerName = "dadchain-bot"
	latestJokes  = 5
	maxRetries   = 3
)

var ErrRateLimited = errors.New("telegram rate limited")

// Reader is the read side of the node the bot reports on.
type Reader interface {
	Joke(id uint64) (models.Joke, error)
	Jokes(cursor, pageSize uint64) []models.Joke
	Stats() models.Stats
	UserProfile(account common.Address) models.UserProfile
	HasUserClaimedBadge(account common.Address, badgeID uint64) bool
	BadgeTiers() []models.BadgeTier
	TokenInfo() node.TokenInfo
}

type Consumer interface {
	ConsumeEvents(ctx context.Context, durable string, handler func(*queue.EventMessage) error) error
}

type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

type Bot struct {
	settings   telebot.Settings
	reader     Reader
	events     Consumer
	sender     Sender
	tbot       *telebot.Bot
	cfg        config.BotConfig
	retryDelay time.Duration
}

func New(cfg config.BotConfig, reader Reader, events Consumer) (*Bot, error) {
	if cfg.Token == "" {
		return nil, config.ErrEmptyBotToken
	}

	return &Bot{
		cfg:        cfg,
		reader:     reader,
		events:     events,
		retryDelay: time.Second,
		settings: telebot.Settings{
			Token:  cfg.Token,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		},
	}, nil
}

// Start connects to Telegram and serves commands until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	tbot, err := telebot.NewBot(b.settings)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	b.tbot = tbot
	b.sender = tbot
	b.setupHandlers(tbot)

	b.startEventConsumer(ctx)

	go tbot.Start()
	go func() {
		<-ctx.Done()
		tbot.Stop()
	}()

	return nil
}

func (b *Bot) setupHandlers(bot *telebot.Bot) {
	bot.Handle(telebot.OnText, func(c telebot.Context) error {
		logger.Info("Incoming text message",
			logger.Int64("user_id", c.Sender().ID),
			logger.String("username", c.Sender().Username),
		)
		return b.send(c.Chat().ID, "Use /help to see what I can do.")
	})

	bot.Handle("/start", b.reply(func([]string) string { return welcomeText }))
	bot.Handle("/help", b.reply(func([]string) string { return helpText }))
	bot.Handle("/stats", b.reply(func([]string) string { return b.statsText() }))
	bot.Handle("/latest", b.reply(func([]string) string { return b.latestText() }))
	bot.Handle("/joke", b.reply(b.jokeText))
	bot.Handle("/profile", b.reply(b.profileText))
	bot.Handle("/badges", b.reply(b.badgesText))
}

func (b *Bot) reply(render func(args []string) string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		logger.Info("Incoming command",
			logger.Int64("user_id", c.Sender().ID),
			logger.String("text", c.Text()),
		)
		return b.send(c.Chat().ID, render(c.Args()))
	}
}

func (b *Bot) startEventConsumer(ctx context.Context) {
	if b.events == nil || b.cfg.AnnounceChatID == 0 {
		return
	}

	go func() {
		logger.Info("Starting announcement consumer...")
		err := b.events.ConsumeEvents(ctx, ConsumerName, b.HandleEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Announcement consumer error", logger.Err(err))
		}
	}()
}

// HandleEvent announces new jokes and claimed badges to the configured chat.
// Other events are acknowledged silently.
func (b *Bot) HandleEvent(ev *queue.EventMessage) error {
	text, ok, err := announcement(ev)
	if err != nil {
		logger.Warn("Dropping undecodable event",
			logger.String("name", ev.Name),
			logger.Uint64("seq", ev.Seq),
			logger.Err(err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return b.send(b.cfg.AnnounceChatID, text)
}

func announcement(ev *queue.EventMessage) (string, bool, error) {
	switch ev.Name {
	case "JokeSubmitted":
		var data ledger.JokeSubmitted
		if err := ev.Decode(&data); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("*New joke #%d* by `%s`\n\n%s",
			data.ID, shortAddress(data.Creator), escapeMarkdown(data.Content)), true, nil
	case "BadgeClaimed":
		var data ledger.BadgeClaimed
		if err := ev.Decode(&data); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("`%s` claimed badge #%d", shortAddress(data.User), data.BadgeID), true, nil
	}
	return "", false, nil
}

func (b *Bot) send(chatID int64, text string) error {
	if b.sender == nil {
		return errors.New("bot is not started")
	}
	return b.sendMessageWithRetry(chatID, text)
}

func (b *Bot) sendMessageWithRetry(chatID int64, text string) error {
	retryDelay := b.retryDelay

	for i := 0; i < maxRetries; i++ {
		_, err := b.sender.Send(&telebot.Chat{ID: chatID}, text, &telebot.SendOptions{
			ParseMode: telebot.ParseMode(b.cfg.ParseMode),
		})

		if err != nil {
			errStr := err.Error()
			if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "retry after") {
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

const welcomeText = "*Welcome to DadChain!*\n\n" +
	"Dad jokes, likes, tips and badges on a ledger.\n\n" + helpCommands

const helpText = "*Help*\n\n" + helpCommands

const helpCommands = "Commands:\n" +
	"- /stats - Ledger statistics\n" +
	"- /latest - The newest jokes\n" +
	"- /joke <id> - Show one joke\n" +
	"- /profile <address> - A creator's stats\n" +
	"- /badges <address> - Badges claimed by an address\n" +
	"- /help - Show this help message"

func (b *Bot) statsText() string {
	stats := b.reader.Stats()
	return fmt.Sprintf(
		"*DadChain Statistics*\n\n"+
			"Total jokes: %d\n"+
			"Total users: %d\n"+
			"Total tips: %s",
		stats.TotalJokes, stats.TotalUsers, b.amount(stats.TotalTips.Big()),
	)
}

func (b *Bot) latestText() string {
	jokes := b.reader.Jokes(0, latestJokes)
	if len(jokes) == 0 {
		return "No jokes yet. Be the first!"
	}

	var sb strings.Builder
	sb.WriteString("*Latest jokes*\n")
	for _, j := range jokes {
		sb.WriteString("\n")
		sb.WriteString(b.jokeLine(j))
	}
	return sb.String()
}

func (b *Bot) jokeText(args []string) string {
	if len(args) != 1 {
		return "Usage: /joke <id>"
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return "Joke id must be a number."
	}

	joke, err := b.reader.Joke(id)
	if err != nil {
		return fmt.Sprintf("Joke #%d does not exist.", id)
	}
	return b.jokeLine(joke)
}

func (b *Bot) profileText(args []string) string {
	addr, ok := parseAddress(args)
	if !ok {
		return "Usage: /profile <address>"
	}

	p := b.reader.UserProfile(addr)
	return fmt.Sprintf(
		"*Profile* `%s`\n\n"+
			"Jokes: %d\n"+
			"Likes received: %d\n"+
			"Tips received: %s",
		shortAddress(addr), p.JokeCount, p.TotalLikesReceived, b.amount(p.TotalTipsReceived.Big()),
	)
}

func (b *Bot) badgesText(args []string) string {
	addr, ok := parseAddress(args)
	if !ok {
		return "Usage: /badges <address>"
	}

	p := b.reader.UserProfile(addr)
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Badges* `%s`\n", shortAddress(addr))
	for _, tier := range b.reader.BadgeTiers() {
		status := fmt.Sprintf("%d/%d jokes", min(p.JokeCount, tier.MinJokes), tier.MinJokes)
		switch {
		case b.reader.HasUserClaimedBadge(addr, tier.ID):
			status = "claimed"
		case p.JokeCount >= tier.MinJokes:
			status = "ready to claim"
		}
		fmt.Fprintf(&sb, "\n%s: %s", tier.Name, status)
	}
	return sb.String()
}

func (b *Bot) jokeLine(j models.Joke) string {
	return fmt.Sprintf("*#%d* %s\n%d likes, %s tipped",
		j.ID, escapeMarkdown(j.Content), j.LikeCount, b.amount(j.TipAmount.Big()))
}

// amount renders base units in the ledger token's decimals and symbol.
func (b *Bot) amount(v *big.Int) string {
	info := b.reader.TokenInfo()
	return formatAmount(v, info.Decimals) + " " + info.Symbol
}

func parseAddress(args []string) (common.Address, bool) {
	if len(args) != 1 || !common.IsHexAddress(args[0]) {
		return common.Address{}, false
	}
	return common.HexToAddress(args[0]), true
}

func shortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "…" + hex[len(hex)-4:]
}

// formatAmount renders base units with the given decimals as a decimal string.
func formatAmount(v *big.Int, decimals uint8) string {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(v, unit, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	digits := frac.String()
	digits = strings.Repeat("0", int(decimals)-len(digits)) + digits
	return whole.String() + "." + strings.TrimRight(digits, "0")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
