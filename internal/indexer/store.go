// Package indexer projects bus events into a queryable gorm store.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dadchain/internal/queue"
	"dadchain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const ConsumerName = "dadchain-indexer"

var ErrInvalidDatabaseURL = errors.New("database url must start with postgres:// or sqlite://")

// Event is one committed event row. Position is the event's index within
// its transaction, so (Seq, Position) is unique.
type Event struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	Seq       uint64    `gorm:"not null;uniqueIndex:idx_event_position" json:"seq"`
	Position  int       `gorm:"not null;uniqueIndex:idx_event_position" json:"index"`
	Name      string    `gorm:"not null;index" json:"name"`
	TxHash    string    `gorm:"not null" json:"txHash"`
	Contract  string    `gorm:"not null" json:"contract"`
	Account   string    `gorm:"index" json:"account,omitempty"`
	JokeID    *uint64   `gorm:"index" json:"jokeId,omitempty"`
	Data      string    `gorm:"not null" json:"data"`
	EmittedAt time.Time `json:"emittedAt"`
	CreatedAt time.Time `json:"-"`
}

// Open connects to a postgres:// or sqlite:// URL.
func Open(url string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch {
	case strings.HasPrefix(url, "postgres://"):
		dialector = postgres.Open(url)
		logger.Info("Connecting indexer to PostgreSQL database...")
	case strings.HasPrefix(url, "sqlite://"):
		dsn := strings.TrimPrefix(url, "sqlite://")
		dialector = sqlite.Open(dsn)
		logger.Info("Connecting indexer to SQLite database", logger.String("path", dsn))
	default:
		return nil, ErrInvalidDatabaseURL
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns a store on db.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("failed to migrate index schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Handle stores a bus message. Redelivered messages are ignored.
func (s *Store) Handle(msg *queue.EventMessage) error {
	ev := project(msg)
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ev).Error
	if err != nil {
		return fmt.Errorf("failed to store event %s: %w", msg.ID(), err)
	}

	logger.Debug("Event indexed",
		logger.String("name", msg.Name),
		logger.Uint64("seq", msg.Seq),
	)
	return nil
}

// Recent returns up to limit events, newest first, optionally filtered by name.
func (s *Store) Recent(limit int, name string) ([]Event, error) {
	q := s.db.Order("seq DESC, position DESC").Limit(limit)
	if name != "" {
		q = q.Where("name = ?", name)
	}

	var events []Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// ByAccount returns up to limit events touching account, newest first.
func (s *Store) ByAccount(account string, limit int) ([]Event, error) {
	var events []Event
	err := s.db.Where("account = ?", account).
		Order("seq DESC, position DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// accountKeys is the order in which payload fields name the acting account.
// The zero address never counts, so a mint is indexed against its recipient.
var accountKeys = []string{"liker", "tipper", "creator", "user", "owner", "from", "to", "minter"}

func project(msg *queue.EventMessage) Event {
	ev := Event{
		Seq:       msg.Seq,
		Position:  msg.Index,
		Name:      msg.Name,
		TxHash:    msg.TxHash.Hex(),
		Contract:  msg.Contract.Hex(),
		Data:      string(msg.Data),
		EmittedAt: msg.EmittedAt,
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg.Data, &fields); err != nil {
		return ev
	}

	for _, key := range accountKeys {
		var account common.Address
		if raw, ok := fields[key]; ok && json.Unmarshal(raw, &account) == nil && account != (common.Address{}) {
			ev.Account = account.Hex()
			break
		}
	}

	key := "jokeId"
	if msg.Name == "JokeSubmitted" {
		key = "id"
	}
	if raw, ok := fields[key]; ok {
		var id uint64
		if json.Unmarshal(raw, &id) == nil {
			ev.JokeID = &id
		}
	}
	return ev
}
