package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrUnknownStrategy 表示策略 id 未注册。
	ErrUnknownStrategy = errors.New("strategy: unknown strategy id")
	// ErrDuplicateStrategy 表示同一 id 被注册了两次，属于启动期配置错误。
	ErrDuplicateStrategy = errors.New("strategy: duplicate strategy id")
)

type entry struct {
	name    string
	factory Factory
	schema  *jsonschema.Schema
}

// Registry 是策略构造器的查表，按整数 id 索引。注册在进程启动时
// 完成，之后只读，无需加锁。
type Registry struct {
	entries map[int64]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]entry)}
}

// Register 登记一个策略构造器。schemaJSON 描述该策略的参数包要求
// （必填键），为空则跳过 schema 校验。重复 id 立刻报错，
// 不会拖到派发时才发现。
func (r *Registry) Register(id int64, name string, schemaJSON string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("策略 %d 的 factory 不能为空", id)
	}
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %d (%s)", ErrDuplicateStrategy, id, name)
	}
	var schema *jsonschema.Schema
	if schemaJSON != "" {
		compiled, err := jsonschema.CompileString(fmt.Sprintf("strategy-%d.json", id), schemaJSON)
		if err != nil {
			return fmt.Errorf("策略 %d 参数 schema 编译失败: %w", id, err)
		}
		schema = compiled
	}
	r.entries[id] = entry{name: name, factory: factory, schema: schema}
	return nil
}

// Known 报告 id 是否已注册。
func (r *Registry) Known(id int64) bool {
	_, ok := r.entries[id]
	return ok
}

// IDs 返回已注册的策略 id（升序）。
func (r *Registry) IDs() []int64 {
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Name 返回策略名（未注册时为空串）。
func (r *Registry) Name(id int64) string {
	return r.entries[id].name
}

// Create 校验参数并构造一个绑定到单个机器人的策略实例。
func (r *Registry) Create(ctx context.Context, id int64, deps Deps, params Params) (Strategy, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, id)
	}
	if e.schema != nil {
		if err := validateParams(e.schema, params); err != nil {
			return nil, err
		}
	}
	return e.factory(ctx, deps, params)
}

func validateParams(schema *jsonschema.Schema, params Params) error {
	doc := make(map[string]interface{}, len(params))
	for k, v := range params {
		doc[k] = v
	}
	// jsonschema 校验要求 JSON 解码后的原生类型。
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	if err := schema.Validate(decoded); err != nil {
		return &InvalidParameterError{Key: "strategy_parameters", Reason: err.Error()}
	}
	return nil
}
