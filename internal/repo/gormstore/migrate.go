package gormstore

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FromPool wraps an existing pgx pool so migrations and the pgx repos share
// one set of connections.
func FromPool(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	}
}

// Migrate creates or alters the users, refresh_tokens and jobs tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserModel{}, &RefreshTokenModel{}, &JobModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
