package db

import (
	"fmt"
	"log"

	"github.com/craterface77/liquidity-guard-be/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB

	Drafts       *DraftRepository
	Policies     *PolicyRepository
	Anchors      *AnchorRepository
	Liquidations *LiquidationRepository
	Claims       *ClaimRepository
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return newStore(nil), nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := gdb.AutoMigrate(
		&PolicyDraftModel{},
		&PolicyModel{},
		&AnchorModel{},
		&LiquidationModel{},
		&ClaimModel{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return newStore(gdb), nil
}

func newStore(gdb *gorm.DB) *Store {
	return &Store{
		DB:           gdb,
		Drafts:       NewDraftRepository(gdb),
		Policies:     NewPolicyRepository(gdb),
		Anchors:      NewAnchorRepository(gdb),
		Liquidations: NewLiquidationRepository(gdb),
		Claims:       NewClaimRepository(gdb),
	}
}

func (s *Store) Available() bool { return s != nil && s.DB != nil }
