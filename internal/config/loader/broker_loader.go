package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"tradesnake/internal/logger"
	"tradesnake/internal/store"
)

// 中文说明：
// 券商费率档案加载器：从 YAML 文件读取各 broker 的点差/佣金参数，
// 校验后落到存储，并监听文件变更热加载。实盘中途改费率只影响
// 之后新启动的机器人，在跑的会话继续用启动时的档案。

const brokerSchemaJSON = `{
	"type": "object",
	"required": ["brokers"],
	"properties": {
		"brokers": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "name"],
				"properties": {
					"id": {"type": "integer", "minimum": 1},
					"name": {"type": "string", "minLength": 1},
					"spread": {"type": "number", "minimum": 0},
					"percent_commission": {"type": "number", "minimum": 0},
					"fixed_commission": {"type": "number", "minimum": 0}
				}
			}
		}
	}
}`

type brokerEntry struct {
	ID                int64   `yaml:"id" json:"id"`
	Name              string  `yaml:"name" json:"name"`
	Spread            float64 `yaml:"spread" json:"spread"`
	PercentCommission float64 `yaml:"percent_commission" json:"percent_commission"`
	FixedCommission   float64 `yaml:"fixed_commission" json:"fixed_commission"`
}

type brokerFile struct {
	Brokers []brokerEntry `yaml:"brokers" json:"brokers"`
}

// BrokerLoader 负责券商档案的读取、校验、落库与热加载。
type BrokerLoader struct {
	path   string
	store  store.Store
	schema *jsonschema.Schema

	mu       sync.RWMutex
	profiles map[int64]store.BrokerProfile
	version  int64
	loadedAt time.Time
}

// NewBrokerLoader 读取档案文件并把全部 broker 落到存储。
func NewBrokerLoader(ctx context.Context, path string, st store.Store) (*BrokerLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("broker loader requires path")
	}
	schema, err := jsonschema.CompileString("brokers.json", brokerSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("compile broker schema failed: %w", err)
	}
	l := &BrokerLoader{
		path:     path,
		store:    st,
		schema:   schema,
		profiles: make(map[int64]store.BrokerProfile),
	}
	if err := l.reload(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Profile 返回内存快照里的档案，缺失时回落到存储。
func (l *BrokerLoader) Profile(ctx context.Context, brokerID int64) (store.BrokerProfile, error) {
	l.mu.RLock()
	profile, ok := l.profiles[brokerID]
	l.mu.RUnlock()
	if ok {
		return profile, nil
	}
	return l.store.LoadBrokerProfile(ctx, brokerID)
}

// Profiles 返回当前快照的拷贝。
func (l *BrokerLoader) Profiles() []store.BrokerProfile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]store.BrokerProfile, 0, len(l.profiles))
	for _, p := range l.profiles {
		out = append(out, p)
	}
	return out
}

// Watch 监听档案文件所在目录，变更时重新加载，直到 ctx 结束。
// 单次加载失败只记日志，保留上一份有效快照。
func (l *BrokerLoader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher failed: %w", err)
	}
	defer watcher.Close()

	// 监听目录而不是文件：编辑器常用 rename+create 方式写文件，
	// 只盯文件 inode 会在第一次改动后失联。
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch %s failed: %w", filepath.Dir(l.path), err)
	}
	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			if err := l.reload(ctx); err != nil {
				logger.Errorf("broker 档案热加载失败 (%s): %v", evt.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("broker 档案监听错误: %v", err)
		}
	}
}

func (l *BrokerLoader) reload(ctx context.Context) error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read broker file failed: %w", err)
	}
	var file brokerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse broker file failed: %w", err)
	}
	if err := l.validateFile(file); err != nil {
		return err
	}

	profiles := make(map[int64]store.BrokerProfile, len(file.Brokers))
	for _, entry := range file.Brokers {
		profile := store.BrokerProfile{
			ID:                entry.ID,
			Name:              entry.Name,
			Spread:            entry.Spread,
			PercentCommission: entry.PercentCommission,
			FixedCommission:   entry.FixedCommission,
		}
		if _, dup := profiles[profile.ID]; dup {
			return fmt.Errorf("broker id %d 重复", profile.ID)
		}
		profiles[profile.ID] = profile
		if err := l.store.SaveBrokerProfile(ctx, profile); err != nil {
			return fmt.Errorf("broker %d 落库失败: %w", profile.ID, err)
		}
	}

	l.mu.Lock()
	l.profiles = profiles
	l.version++
	l.loadedAt = time.Now()
	version := l.version
	l.mu.Unlock()
	logger.Infof("broker 档案已加载：%d 个（%s v%d）", len(profiles), filepath.Base(l.path), version)
	return nil
}

// validateFile 把 YAML 转成 JSON 值再过 schema，保证数值类型统一。
func (l *BrokerLoader) validateFile(file brokerFile) error {
	raw, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode broker file failed: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode broker file failed: %w", err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return fmt.Errorf("broker 档案校验失败: %w", err)
	}
	return nil
}
