package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/repository"
)

// GormPlayerRepository 是 PlayerRepository 接口的 GORM 实现
type GormPlayerRepository struct {
	db *gorm.DB

	curveOnce sync.Once
	curve     []domain.LevelStep // 等级曲线缓存 (静态配置表，进程内只加载一次)
	curveErr  error
}

// NewGormPlayerRepository 创建 GormPlayerRepository 实例
// db *gorm.DB 通过依赖注入传入
func NewGormPlayerRepository(db *gorm.DB) *GormPlayerRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPlayerRepository")
	}
	return &GormPlayerRepository{db: db}
}

// FindByID 实现根据玩家 ID 查找玩家
func (r *GormPlayerRepository) FindByID(ctx context.Context, id uint) (*domain.Player, error) {
	var player domain.Player
	err := r.db.WithContext(ctx).First(&player, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("gorm: find player by id %d: %w", id, err)
	}
	return &player, nil
}

// FindByUsername 实现根据用户名查找玩家
func (r *GormPlayerRepository) FindByUsername(ctx context.Context, username string) (*domain.Player, error) {
	var player domain.Player
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("gorm: find player by username '%s': %w", username, err)
	}
	return &player, nil
}

// Save 实现保存玩家信息（创建或更新）
func (r *GormPlayerRepository) Save(ctx context.Context, player *domain.Player) error {
	result := r.db.WithContext(ctx).Save(player)
	if err := result.Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save player (id: %d, username: %s): %w", player.ID, player.Username, err)
	}
	return nil
}

// equipBonus 是已装备物品的属性聚合结果
type equipBonus struct {
	AtkBonus  int
	DefBonus  int
	HPBonus   int
	CritBonus float64
}

// Stats 实现聚合战斗属性计算：职业基础值 + 已装备物品的实际掷出属性。
// 物品掷出值为 0 时回退到目录的基准值。
func (r *GormPlayerRepository) Stats(ctx context.Context, playerID uint) (*domain.PlayerStats, error) {
	player, err := r.FindByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	var bonus equipBonus
	err = r.db.WithContext(ctx).
		Table("inventory_items AS inv").
		Joins("JOIN items i ON inv.item_key = i.key").
		Where("inv.player_id = ? AND inv.equipped = ?", playerID, true).
		Select(`
			COALESCE(SUM(COALESCE(NULLIF(inv.rolled_atk, 0), i.bonus_atk)), 0)   AS atk_bonus,
			COALESCE(SUM(COALESCE(NULLIF(inv.rolled_def, 0), i.bonus_def)), 0)   AS def_bonus,
			COALESCE(SUM(COALESCE(NULLIF(inv.rolled_hp, 0), i.bonus_hp)), 0)     AS hp_bonus,
			COALESCE(SUM(COALESCE(NULLIF(inv.rolled_crit, 0), i.bonus_crit)), 0) AS crit_bonus`).
		Scan(&bonus).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: aggregate equipment bonus for player %d: %w", playerID, err)
	}

	curve, err := r.levelCurve(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.PlayerStats{
		TotalHP:   player.HPMax + bonus.HPBonus,
		TotalAtk:  player.BaseAtk + bonus.AtkBonus,
		TotalDef:  player.BaseDef + bonus.DefBonus,
		TotalCrit: player.BaseCrit + bonus.CritBonus,
		Level:     domain.LevelForXP(player.XPTotal, curve),
	}, nil
}

// levelCurve 加载并缓存等级曲线 (level_steps 表)
func (r *GormPlayerRepository) levelCurve(ctx context.Context) ([]domain.LevelStep, error) {
	r.curveOnce.Do(func() {
		var steps []domain.LevelStep
		err := r.db.WithContext(ctx).Order("level ASC").Find(&steps).Error
		if err != nil {
			r.curveErr = fmt.Errorf("gorm: load level curve: %w", err)
			return
		}
		r.curve = steps
	})
	return r.curve, r.curveErr
}

// SetState 实现更新玩家状态机位置
func (r *GormPlayerRepository) SetState(ctx context.Context, playerID uint, state domain.PlayerState) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("id = ?", playerID).
		Update("state", state)
	if result.Error != nil {
		return fmt.Errorf("gorm: set player %d state to '%s': %w", playerID, state, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrPlayerNotFound
	}
	return nil
}

// UpdateHP 实现生命值快照写回
func (r *GormPlayerRepository) UpdateHP(ctx context.Context, playerID uint, hp int) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("id = ?", playerID).
		Update("hp", hp)
	if result.Error != nil {
		return fmt.Errorf("gorm: update player %d hp: %w", playerID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrPlayerNotFound
	}
	return nil
}

// AddGoldXP 实现原子增加金币和经验 (SQL 表达式，不经过读-改-写)
func (r *GormPlayerRepository) AddGoldXP(ctx context.Context, playerID uint, gold int64, xp int64) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"gold":     gorm.Expr("gold + ?", gold),
			"xp_total": gorm.Expr("xp_total + ?", xp),
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: add gold/xp for player %d: %w", playerID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrPlayerNotFound
	}
	return nil
}

// ApplyXPPenalty 实现原子扣除经验，下限为 0
func (r *GormPlayerRepository) ApplyXPPenalty(ctx context.Context, playerID uint, xp int64) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("id = ?", playerID).
		Update("xp_total", gorm.Expr("GREATEST(xp_total - ?, 0)", xp))
	if result.Error != nil {
		return fmt.Errorf("gorm: apply xp penalty for player %d: %w", playerID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrPlayerNotFound
	}
	return nil
}

// SetTempBuff 实现设置临时增益
func (r *GormPlayerRepository) SetTempBuff(ctx context.Context, playerID uint, xpPct, dropPct int, expires time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Player{}).
		Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"temp_xp_buff_pct":   xpPct,
			"temp_drop_buff_pct": dropPct,
			"temp_buff_expires":  expires,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: set temp buff for player %d: %w", playerID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrPlayerNotFound
	}
	return nil
}
