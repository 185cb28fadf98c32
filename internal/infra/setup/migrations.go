package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dungeon-raid/internal/domain"
)

// MigrateDB 使用传入的 GORM DB 实例执行全部数据库迁移。
// 返回错误以便调用者知道迁移是否成功。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	// players 表的 password 列是 TEXT，需要自定义 SQL 控制索引长度
	if err := migratePlayersTable(db); err != nil {
		return fmt.Errorf("failed to migrate players table: %w", err)
	}

	// 其余表结构简单，交给 AutoMigrate
	err := db.AutoMigrate(
		&domain.Mob{},
		&domain.Item{},
		&domain.InventoryItem{},
		&domain.LevelStep{},
	)
	if err != nil {
		logrus.Errorf("Failed to auto-migrate catalog tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// migratePlayersTable 处理 players 表迁移
func migratePlayersTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'players'").Count(&count)

	if count == 0 {
		return createPlayersTable(db)
	}
	return updatePlayersTable(db)
}

// createPlayersTable 创建 players 表
func createPlayersTable(db *gorm.DB) error {
	sql := `
	CREATE TABLE players (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(191) NOT NULL, -- 限制长度以匹配索引
		password TEXT NOT NULL,
		name VARCHAR(64) NOT NULL,
		hp INT NOT NULL DEFAULT 100,
		gold BIGINT NOT NULL DEFAULT 0,
		xp_total BIGINT NOT NULL DEFAULT 0,
		class VARCHAR(32),
		hp_max INT NOT NULL DEFAULT 100,
		base_atk INT NOT NULL DEFAULT 5,
		base_def INT NOT NULL DEFAULT 3,
		base_crit DOUBLE NOT NULL DEFAULT 5,
		state VARCHAR(16) NOT NULL DEFAULT 'menu',
		current_zone VARCHAR(32) NOT NULL DEFAULT 'plains',
		temp_xp_buff_pct INT NOT NULL DEFAULT 0,
		temp_drop_buff_pct INT NOT NULL DEFAULT 0,
		temp_buff_expires DATETIME(3) NULL,
		created_at DATETIME(3),
		updated_at DATETIME(3),
		UNIQUE INDEX idx_player_username (username),
		INDEX idx_player_state (state)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		logrus.Errorf("Failed to create players table: %v", err)
		return fmt.Errorf("failed to create players table: %w", err)
	}
	logrus.Info("Players table created successfully")
	return nil
}

// updatePlayersTable 检查并更新已有的 players 表结构
func updatePlayersTable(db *gorm.DB) error {
	// AutoMigrate 负责补充新列和索引；password 列已是 TEXT，不会再触发索引长度问题
	if err := db.AutoMigrate(&domain.Player{}); err != nil {
		logrus.Errorf("Failed to auto-migrate Player table: %v", err)
		return fmt.Errorf("failed to migrate player columns: %w", err)
	}
	logrus.Info("Players table schema checked/updated successfully")
	return nil
}
