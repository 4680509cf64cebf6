package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradesnake/internal/store"
	"tradesnake/internal/store/model"

	"github.com/tidwall/gjson"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// SqliteStore 用 gorm + sqlite 实现 store.Store。
type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

// NewSqliteStoreFromDB 供测试注入已打开的 gorm 连接。
func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	models := []interface{}{
		&model.BotModel{},
		&model.BrokerModel{},
		&model.TradeModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LoadRunningBots 返回所有 is_running 的机器人及其参数包。
// 参数列是 JSON 对象，非字符串值按原样转成文本（与历史数据兼容）。
func (s *SqliteStore) LoadRunningBots(ctx context.Context) ([]store.BotState, error) {
	var rows []model.BotModel
	if err := s.db.WithContext(ctx).Where("is_running = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.BotState, 0, len(rows))
	for _, row := range rows {
		out = append(out, store.BotState{
			BotID:      row.ID,
			OwnerID:    row.OwnerID,
			StrategyID: row.StrategyID,
			BrokerID:   row.BrokerID,
			Symbol:     row.Symbol,
			Interval:   row.Interval,
			Cash:       row.Money,
			Quantity:   row.SymbolCount,
			Params:     decodeParams(row.Params),
		})
	}
	return out, nil
}

func decodeParams(raw []byte) map[string]string {
	params := make(map[string]string)
	if len(raw) == 0 {
		return params
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return params
	}
	parsed.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			params[key.String()] = value.String()
		} else {
			params[key.String()] = value.Raw
		}
		return true
	})
	return params
}

func (s *SqliteStore) UpsertBot(ctx context.Context, state store.BotState) error {
	raw, err := json.Marshal(state.Params)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	row := model.BotModel{
		ID:          state.BotID,
		OwnerID:     state.OwnerID,
		StrategyID:  state.StrategyID,
		BrokerID:    state.BrokerID,
		Symbol:      state.Symbol,
		Interval:    state.Interval,
		Money:       state.Cash,
		SymbolCount: state.Quantity,
		Params:      raw,
		UpdatedAt:   now,
	}
	var existing model.BotModel
	err = s.db.WithContext(ctx).First(&existing, state.BotID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row.CreatedAt = now
		return s.db.WithContext(ctx).Create(&row).Error
	case err != nil:
		return err
	default:
		row.CreatedAt = existing.CreatedAt
		row.Running = existing.Running
		row.CurrentPrice = existing.CurrentPrice
		return s.db.WithContext(ctx).Save(&row).Error
	}
}

func (s *SqliteStore) SetRunning(ctx context.Context, botID int64, running bool) error {
	return s.db.WithContext(ctx).Model(&model.BotModel{}).
		Where("id = ?", botID).
		Updates(map[string]interface{}{"is_running": running, "updated_at": time.Now().Unix()}).Error
}

func (s *SqliteStore) LoadBrokerProfile(ctx context.Context, brokerID int64) (store.BrokerProfile, error) {
	var row model.BrokerModel
	err := s.db.WithContext(ctx).First(&row, brokerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.BrokerProfile{}, fmt.Errorf("broker %d: %w", brokerID, store.ErrBrokerNotFound)
	}
	if err != nil {
		return store.BrokerProfile{}, err
	}
	return store.BrokerProfile{
		ID:                row.ID,
		Name:              row.Name,
		Spread:            row.Spread,
		PercentCommission: row.PercentCommission,
		FixedCommission:   row.FixedCommission,
	}, nil
}

func (s *SqliteStore) SaveBrokerProfile(ctx context.Context, profile store.BrokerProfile) error {
	row := model.BrokerModel{
		ID:                profile.ID,
		Name:              profile.Name,
		Spread:            profile.Spread,
		PercentCommission: profile.PercentCommission,
		FixedCommission:   profile.FixedCommission,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *SqliteStore) RecordTrade(ctx context.Context, trade store.Trade) error {
	ts := trade.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	row := model.TradeModel{
		BotID:       trade.BotID,
		TypeID:      int(trade.Type),
		Price:       trade.Price,
		BrokerPrice: trade.BrokerPrice,
		Quantity:    trade.Quantity,
		Time:        ts.Unix(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SqliteStore) ApplyBuy(ctx context.Context, botID int64, spend, qty float64) error {
	return s.db.WithContext(ctx).Model(&model.BotModel{}).
		Where("id = ?", botID).
		Updates(map[string]interface{}{
			"money":        gorm.Expr("money - ?", spend),
			"symbol_count": gorm.Expr("symbol_count + ?", qty),
			"updated_at":   time.Now().Unix(),
		}).Error
}

func (s *SqliteStore) ApplySell(ctx context.Context, botID int64, proceeds float64) error {
	return s.db.WithContext(ctx).Model(&model.BotModel{}).
		Where("id = ?", botID).
		Updates(map[string]interface{}{
			"money":        gorm.Expr("money + ?", proceeds),
			"symbol_count": 0,
			"updated_at":   time.Now().Unix(),
		}).Error
}

func (s *SqliteStore) MarkPrice(ctx context.Context, botID int64, price float64) error {
	return s.db.WithContext(ctx).Model(&model.BotModel{}).
		Where("id = ?", botID).
		Update("current_price", price).Error
}

var _ store.Store = (*SqliteStore)(nil)
