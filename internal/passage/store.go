package passage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNoPassages = errors.New("passage bank is empty")

// Passage is a row of the curated passage bank. Rooms and results are never stored.
type Passage struct {
	ID        uint   `gorm:"primaryKey"`
	Text      string `gorm:"not null;uniqueIndex"`
	Words     int    `gorm:"not null"`
	CreatedAt time.Time
}

// Store serves random passages from Postgres.
type Store struct {
	db *gorm.DB
}

func OpenStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open passage store: %w", err)
	}
	return NewStore(db), nil
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Passage{})
}

// Seed inserts texts that are not in the bank yet.
func (s *Store) Seed(ctx context.Context, texts []string) error {
	for _, t := range texts {
		t = Clamp(t)
		if t == "" {
			continue
		}
		p := Passage{Text: t, Words: len(strings.Fields(t))}
		if err := s.db.WithContext(ctx).Where(Passage{Text: t}).FirstOrCreate(&p).Error; err != nil {
			return fmt.Errorf("seed passage: %w", err)
		}
	}
	return nil
}

func (s *Store) Next(ctx context.Context) (string, error) {
	var p Passage
	err := s.db.WithContext(ctx).Order("RANDOM()").Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoPassages
	}
	if err != nil {
		return "", fmt.Errorf("pick passage: %w", err)
	}
	return p.Text, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
