package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"chatflow/client/internal/models"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ClientToken is one persisted key of a profile's token pair.
type ClientToken struct {
	Profile   string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"primaryKey;size:32"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// SQLStore keeps the pair in a Postgres table, one row per key.
type SQLStore struct {
	DB      *gorm.DB
	Profile string
}

// OpenPostgres opens dsn through the lib/pq driver.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return openGorm(postgresDialector(dsn))
}

func postgresDialector(dsn string) gorm.Dialector {
	return postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        dsn,
	})
}

// openGorm opens d and closes the pool again when the first ping fails.
func openGorm(d gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func closeGorm(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

// openSQLStore opens and migrates a store for profile. The returned closer
// owns the connection pool; on error the pool is already closed.
func openSQLStore(ctx context.Context, d gorm.Dialector, profile string) (*SQLStore, io.Closer, error) {
	db, err := openGorm(d)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewSQLStore(ctx, db, profile)
	if err != nil {
		closeGorm(db)
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		closeGorm(db)
		return nil, nil, err
	}
	return store, sqlDB, nil
}

// NewSQLStore migrates the token table and returns a store for profile.
func NewSQLStore(ctx context.Context, db *gorm.DB, profile string) (*SQLStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&ClientToken{}); err != nil {
		return nil, fmt.Errorf("migrate client_tokens: %w", err)
	}
	return &SQLStore{DB: db, Profile: profile}, nil
}

func (s *SQLStore) Tokens(ctx context.Context) (models.TokenPair, error) {
	var rows []ClientToken
	if err := s.DB.WithContext(ctx).Where("profile = ?", s.Profile).Find(&rows).Error; err != nil {
		return models.TokenPair{}, fmt.Errorf("read tokens: %w", err)
	}

	var pair models.TokenPair
	for _, row := range rows {
		switch row.Name {
		case KeyAccessToken:
			pair.AccessToken = row.Value
		case KeyRefreshToken:
			pair.RefreshToken = row.Value
		}
	}
	return pair, nil
}

func (s *SQLStore) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile = ?", s.Profile).Delete(&ClientToken{}).Error; err != nil {
			return err
		}

		now := time.Now()
		var rows []ClientToken
		if pair.AccessToken != "" {
			rows = append(rows, ClientToken{Profile: s.Profile, Name: KeyAccessToken, Value: pair.AccessToken, UpdatedAt: now})
		}
		if pair.RefreshToken != "" {
			rows = append(rows, ClientToken{Profile: s.Profile, Name: KeyRefreshToken, Value: pair.RefreshToken, UpdatedAt: now})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}

func (s *SQLStore) ClearTokens(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).Where("profile = ?", s.Profile).Delete(&ClientToken{}).Error; err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}
