package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	migrateMySQL "github.com/golang-migrate/migrate/v4/database/mysql"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	gormMySQL "gorm.io/driver/mysql"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/config"
)

// NewDB создает подключение к PostgreSQL или MySQL по конфигурации
func NewDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = gormMySQL.Open(dsn)
	case "postgres", "":
		dialector = gormPostgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Все записи - одиночные INSERT/UPDATE, неявная транзакция не нужна
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Настройка пула соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// migrationSource возвращает URL каталога миграций для драйвера:
// у каждой СУБД свой набор SQL-файлов в <migrationsPath>/<driver>
func migrationSource(migrationsPath, driverName string) (string, error) {
	switch driverName {
	case "postgres", "":
		driverName = "postgres"
	case "mysql":
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driverName)
	}
	return "file://" + filepath.ToSlash(filepath.Join(migrationsPath, driverName)), nil
}

// NewMigrator создает экземпляр migrate для SQL-миграций драйвера
func NewMigrator(sqlDB *sql.DB, driverName, migrationsPath string) (*migrateV4.Migrate, error) {
	source, err := migrationSource(migrationsPath, driverName)
	if err != nil {
		return nil, err
	}

	// Убедимся, что подключение к БД активно
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось проверить подключение к БД перед миграцией: %w", err)
	}

	var m *migrateV4.Migrate
	switch driverName {
	case "mysql":
		driver, derr := migrateMySQL.WithInstance(sqlDB, &migrateMySQL.Config{})
		if derr != nil {
			return nil, fmt.Errorf("не удалось создать драйвер mysql для migrate: %w", derr)
		}
		m, err = migrateV4.NewWithDatabaseInstance(source, "mysql", driver)
	default:
		driver, derr := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
		if derr != nil {
			return nil, fmt.Errorf("не удалось создать драйвер postgres для migrate: %w", derr)
		}
		m, err = migrateV4.NewWithDatabaseInstance(source, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}
	return m, nil
}

// MigrateDB применяет SQL-миграции "вверх" для драйвера из конфигурации
func MigrateDB(db *gorm.DB, cfg config.DatabaseConfig, log *zap.Logger) error {
	log = log.With(zap.String("driver", cfg.Driver), zap.String("path", cfg.MigrationsPath))
	log.Info("applying database migrations")

	sqlDB, err := GetSQLDB(db)
	if err != nil {
		return err
	}

	m, err := NewMigrator(sqlDB, cfg.Driver, cfg.MigrationsPath)
	if err != nil {
		return err
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrateV4.ErrNoChange):
		log.Info("database schema is up to date")
	case err != nil:
		log.Error("migration failed", zap.Error(err))
		return fmt.Errorf("ошибка применения миграций 'up': %w", err)
	default:
		version, _, _ := m.Version()
		log.Info("migrations applied", zap.Uint("version", version))
	}
	return nil
}

// GetSQLDB возвращает базовый *sql.DB из *gorm.DB
func GetSQLDB(gormDB *gorm.DB) (*sql.DB, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB, nil
}
