package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbridge/auth/config"
)

type TestModel struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func testConfig(driver, dsn string, migrate bool) config.Config {
	return config.Config{
		Database: config.DatabaseConfig{
			Driver:      driver,
			DSN:         dsn,
			AutoMigrate: migrate,
		},
	}
}

func TestProvideDatabase(t *testing.T) {
	t.Run("sqlite in memory", func(t *testing.T) {
		db, err := ProvideDatabase(testConfig("sqlite", ":memory:", false), nil, nil)

		require.NoError(t, err)
		require.NotNil(t, db)

		sqlDB, err := db.DB()
		require.NoError(t, err)
		assert.NoError(t, sqlDB.Ping())
		sqlDB.Close()
	})

	t.Run("auto migrate models", func(t *testing.T) {
		db, err := ProvideDatabase(testConfig("sqlite", ":memory:", true), WithModels(TestModel{}), nil)

		require.NoError(t, err)
		assert.True(t, db.Migrator().HasTable(&TestModel{}))
	})

	t.Run("unsupported driver", func(t *testing.T) {
		db, err := ProvideDatabase(testConfig("oracle", "whatever", false), nil, nil)

		require.Error(t, err)
		assert.Nil(t, db)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})
}
