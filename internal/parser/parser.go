// Package parser seeds the ledger with dad jokes scraped from Reddit. Each
// joke is submitted from the configured seeder account, so seeded jokes earn
// likes and tips like any other.
package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"dadchain/internal/chain"
	"dadchain/internal/config"
	"dadchain/internal/ledger"
	"dadchain/internal/models"
	"dadchain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

const scanPageSize = 100

// Ledger is the part of the node the seeder writes to.
type Ledger interface {
	Call(ctx context.Context, from common.Address, method string, args any) (*chain.Receipt, error)
	Jokes(cursor, pageSize uint64) []models.Joke
	MaxContentLength() int
}

type Parser struct {
	cfg     config.ParserConfig
	client  *http.Client
	ledger  Ledger
	account common.Address

	seen   map[string]struct{}
	loaded bool
}

func New(cfg config.ParserConfig, l Ledger, opts ...Option) *Parser {
	p := &Parser{
		cfg:     cfg,
		ledger:  l,
		account: cfg.AccountAddress(),
		seen:    make(map[string]struct{}),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

type Option func(*Parser)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Parser) {
		p.client = client
	}
}

type RedditPost struct {
	Data struct {
		Children []struct {
			Data struct {
				Title     string `json:"title"`
				Selftext  string `json:"selftext"`
				Permalink string `json:"permalink"`
				Stickied  bool   `json:"stickied"`
				Over18    bool   `json:"over_18"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (p *Parser) Start(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}

	logger.Info("Running initial parse...")
	if _, err := p.ParseAll(ctx); err != nil {
		logger.Error("Initial parse failed", logger.Err(err))
		return fmt.Errorf("initial parse failed: %w", err)
	}
	logger.Info("Initial parse completed")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.ParseAll(ctx); err != nil {
				logger.Error("Parse failed", logger.Err(err))
			}
		}
	}
}

// ParseAll fetches every configured subreddit and submits the jokes not
// seeded before. It returns how many were submitted.
func (p *Parser) ParseAll(ctx context.Context) (int, error) {
	if !p.loaded {
		p.loadSeeded()
		p.loaded = true
	}

	submitted := 0
	for _, subreddit := range p.cfg.Subreddits {
		n, err := p.parseSubreddit(ctx, subreddit)
		submitted += n
		if err != nil {
			return submitted, fmt.Errorf("reddit parsing failed: %w", err)
		}
	}
	return submitted, nil
}

// loadSeeded remembers the jokes the seeder account already submitted so a
// restart does not post them again.
func (p *Parser) loadSeeded() {
	var cursor uint64
	for {
		page := p.ledger.Jokes(cursor, scanPageSize)
		for _, j := range page {
			if j.Creator == p.account {
				p.seen[generateHash(j.Content)] = struct{}{}
			}
		}
		if len(page) == 0 || page[len(page)-1].ID <= 1 {
			return
		}
		cursor = page[len(page)-1].ID
	}
}

func (p *Parser) parseSubreddit(ctx context.Context, subreddit string) (int, error) {
	logger.Info("Parsing subreddit", logger.String("subreddit", subreddit))
	url := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", strings.TrimRight(p.cfg.BaseURL, "/"), subreddit, p.cfg.Limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "dadchain-seeder/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("Failed to fetch subreddit", logger.String("subreddit", subreddit), logger.Err(err))
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Non-OK status from Reddit", logger.String("subreddit", subreddit), logger.Int("status", resp.StatusCode))
		return 0, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var posts RedditPost
	if err := json.Unmarshal(body, &posts); err != nil {
		return 0, err
	}

	submitted := 0
	for _, child := range posts.Data.Children {
		post := child.Data
		if post.Stickied || post.Over18 {
			continue
		}

		content := composeJoke(post.Title, post.Selftext)
		if content == "" || utf8.RuneCountInString(content) > p.ledger.MaxContentLength() {
			continue
		}

		hash := generateHash(content)
		if _, ok := p.seen[hash]; ok {
			continue
		}

		rcpt, err := p.ledger.Call(ctx, p.account, ledger.MethodSubmitJoke, ledger.SubmitJokeArgs{Content: content})
		if err != nil {
			if _, ok := chain.AsRevert(err); ok {
				logger.Warn("Joke rejected by ledger",
					logger.String("permalink", post.Permalink),
					logger.Err(err),
				)
				continue
			}
			return submitted, err
		}

		p.seen[hash] = struct{}{}
		submitted++
		logger.Info("Seeded joke",
			logger.String("subreddit", subreddit),
			logger.Uint64("seq", rcpt.Seq),
		)
	}

	return submitted, nil
}

// composeJoke joins the setup in the title with the punchline in the body.
func composeJoke(title, body string) string {
	title = strings.TrimSpace(cleanHTML(title))
	body = strings.TrimSpace(cleanHTML(body))
	if body == "[removed]" || body == "[deleted]" {
		return ""
	}
	if body == "" {
		return title
	}
	if title == "" {
		return body
	}
	return title + "\n" + body
}

func generateHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func cleanHTML(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#x200B;", "")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return text
}
