package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	// MigrationsTable 迁移版本表，与其他服务共用数据库时互不干扰
	MigrationsTable = "timetable_schema_migrations"
	// SchemaVersion 当前代码依赖的运行记录表结构版本（schedule_runs / run_entries / run_violations）
	SchemaVersion uint = 1
)

var (
	ErrSchemaDirty    = errors.New("运行记录表结构处于 dirty 状态，需要人工修复")
	ErrSchemaOutdated = errors.New("运行记录表结构版本过低")
)

// RunMigrations 执行运行记录表的迁移
// 迁移后版本必须不低于 SchemaVersion 且不处于 dirty 状态
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	if err := checkSchema(version, dirty, logger); err != nil {
		return err
	}
	logger.Info("运行记录表迁移完成", zap.String("table", MigrationsTable), zap.Uint("version", version))
	return nil
}

// checkSchema 校验迁移后的表结构版本；高于 SchemaVersion 只告警（回滚到旧版本程序时出现）
func checkSchema(version uint, dirty bool, logger *zap.Logger) error {
	switch {
	case dirty:
		return fmt.Errorf("%w: version=%d", ErrSchemaDirty, version)
	case version < SchemaVersion:
		return fmt.Errorf("%w: 期望 %d，实际 %d", ErrSchemaOutdated, SchemaVersion, version)
	case version > SchemaVersion:
		logger.Warn("运行记录表结构版本高于程序预期", zap.Uint("version", version), zap.Uint("expected", SchemaVersion))
	}
	return nil
}
