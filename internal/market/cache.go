package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// CandleCache 把拉取过的历史 K 线落到本地 sqlite，行情源故障时
// 可以用缓存降级（回测 warmup 也走这里）。
type CandleCache struct {
	mu sync.Mutex
	db *sql.DB
}

func NewCandleCache(path string) (*CandleCache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("candle cache path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureCacheSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &CandleCache{db: db}, nil
}

func ensureCacheSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		ts INTEGER NOT NULL,
		open REAL NOT NULL,
		close REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		volume REAL NOT NULL,
		turnover REAL NOT NULL,
		PRIMARY KEY (symbol, interval, ts)
	)`)
	return err
}

func (c *CandleCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// InsertCandles 批量写入（重复时间戳覆盖）。
func (c *CandleCache) InsertCandles(ctx context.Context, symbol, interval string, candles []Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return 0, fmt.Errorf("candle cache 已关闭")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, interval, ts, open, close, high, low, volume, turnover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, ts) DO UPDATE SET
		    open=excluded.open,
		    close=excluded.close,
		    high=excluded.high,
		    low=excluded.low,
		    volume=excluded.volume,
		    turnover=excluded.turnover`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, cd := range candles {
		ts := cd.Unix()
		if ts == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, strings.ToUpper(symbol), interval, ts,
			cd.Open, cd.Close, cd.High, cd.Low, cd.Volume, cd.Turnover); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// RangeCandles 按时间升序返回 [start, end] 区间内的缓存 K 线。
func (c *CandleCache) RangeCandles(ctx context.Context, symbol, interval string, start, end int64) ([]Candle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, fmt.Errorf("candle cache 已关闭")
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT ts, open, close, high, low, volume, turnover
		FROM candles
		WHERE symbol = ? AND interval = ? AND ts BETWEEN ? AND ?
		ORDER BY ts`, strings.ToUpper(symbol), interval, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Candle
	for rows.Next() {
		var ts int64
		var cd Candle
		if err := rows.Scan(&ts, &cd.Open, &cd.Close, &cd.High, &cd.Low, &cd.Volume, &cd.Turnover); err != nil {
			return nil, err
		}
		cd.Timestamp = strconv.FormatInt(ts, 10)
		out = append(out, cd)
	}
	return out, rows.Err()
}
