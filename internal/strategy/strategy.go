package strategy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Decision 是策略唯一的输出契约。
type Decision int

const (
	Hold Decision = 0
	Buy  Decision = 1
	Sell Decision = -1
)

func (d Decision) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Strategy 把当前价格（加上内部状态）映射为买/卖/持有。
// 同一价格序列必须产生相同的决策序列，回测的可复现性依赖这一点。
type Strategy interface {
	Decide(price float64) Decision
}

// WarmupFunc 返回某个 symbol+interval 最近 periods 根 K 线的收盘价
// （从旧到新）。回测从冷状态起步，传 nil。
type WarmupFunc func(ctx context.Context, symbol, interval string, periods int) ([]float64, error)

// Deps 是构造策略时注入的协作方。
type Deps struct {
	Symbol   string
	Interval string
	Warmup   WarmupFunc
}

// Factory 按一个机器人的参数包构造一个策略实例。
type Factory func(ctx context.Context, deps Deps, params Params) (Strategy, error)

// Params 是字符串键值的策略参数包，未知键忽略。
type Params map[string]string

// InvalidParameterError 表示必填参数缺失或数值格式非法。
type InvalidParameterError struct {
	Key    string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("参数 %q 无效: %s", e.Key, e.Reason)
}

// Str 取必填的字符串参数。
func (p Params) Str(key string) (string, error) {
	v, ok := p[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", &InvalidParameterError{Key: key, Reason: "缺失"}
	}
	return v, nil
}

// Float 取必填的数值参数。
func (p Params) Float(key string) (float64, error) {
	raw, err := p.Str(key)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if perr != nil {
		return 0, &InvalidParameterError{Key: key, Reason: "不是合法数值"}
	}
	return v, nil
}

// Int 取必填的整数参数。
func (p Params) Int(key string) (int, error) {
	raw, err := p.Str(key)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.Atoi(strings.TrimSpace(raw))
	if perr != nil {
		return 0, &InvalidParameterError{Key: key, Reason: "不是合法整数"}
	}
	return v, nil
}

// FloatOr 取可选数值参数，缺失时用默认值，格式错误仍然报错。
func (p Params) FloatOr(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if perr != nil {
		return 0, &InvalidParameterError{Key: key, Reason: "不是合法数值"}
	}
	return v, nil
}

// StrOr 取可选字符串参数。
func (p Params) StrOr(key, def string) string {
	v, ok := p[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
