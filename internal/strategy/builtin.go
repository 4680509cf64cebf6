package strategy

// 内置策略 id 与持久层的 strategies 表保持一致。
const (
	StrategyMA       int64 = 1
	StrategyRSI      int64 = 2
	StrategyMARSI    int64 = 3
	StrategyMomentum int64 = 4
)

// RegisterBuiltins 登记全部内置策略。重复注册（例如测试里调用两次）
// 会返回配置错误。
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(StrategyMA, "ma", maSchema, newMAStrategy); err != nil {
		return err
	}
	if err := r.Register(StrategyRSI, "rsi", rsiSchema, newRSIStrategy); err != nil {
		return err
	}
	if err := r.Register(StrategyMARSI, "marsi", marsiSchema, newMARSIStrategy); err != nil {
		return err
	}
	return r.Register(StrategyMomentum, "momentum", momentumSchema, newMomentumStrategy)
}
