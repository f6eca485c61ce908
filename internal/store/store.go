// Package store opens the repositories for the configured database driver.
package store

import (
	"context"
	"fmt"

	"tenismatch/internal/config"
	"tenismatch/internal/domain"
	"tenismatch/internal/store/mysql"
	"tenismatch/internal/store/postgres"
	"tenismatch/internal/store/sqlite"
)

type Store struct {
	Users         domain.UserRepository
	Conversations domain.ConversationRepository
	Messages      domain.MessageRepository
	Participants  domain.ParticipantRepository

	close func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the database selected by cfg.DBDriver and migrates it.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{
			Users:         postgres.NewUserRepo(db),
			Conversations: postgres.NewConversationRepo(db),
			Messages:      postgres.NewMessageRepo(db, cfg.PGNotify),
			Participants:  postgres.NewParticipantRepo(db),
			close:         db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{
			Users:         sqlite.NewUserRepo(db),
			Conversations: sqlite.NewConversationRepo(db),
			Messages:      sqlite.NewMessageRepo(db),
			Participants:  sqlite.NewParticipantRepo(db),
			close:         db.Close,
		}, nil

	case config.DriverMySQL:
		db, err := mysql.Open(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("mysql pool: %w", err)
		}
		if err := mysql.Migrate(ctx, db); err != nil {
			sqlDB.Close()
			return nil, err
		}
		return &Store{
			Users:         mysql.NewUserRepo(db),
			Conversations: mysql.NewConversationRepo(db),
			Messages:      mysql.NewMessageRepo(db),
			Participants:  mysql.NewParticipantRepo(db),
			close:         sqlDB.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
}
