package market

import "time"

// 周期标识沿用持久层的约定："d" 为日线，其余为分钟数。
var tickDurations = map[string]time.Duration{
	"d":  24 * time.Hour,
	"60": time.Hour,
	"30": 30 * time.Minute,
	"15": 15 * time.Minute,
	"5":  5 * time.Minute,
	"1":  time.Minute,
}

// TickDuration 返回周期对应的轮询间隔。未识别的周期退化为 1 秒快轮询，
// 不视为错误，由调用方记录告警。
func TickDuration(interval string) (time.Duration, bool) {
	if d, ok := tickDurations[interval]; ok {
		return d, true
	}
	return time.Second, false
}

// IntervalSeconds 返回周期长度（秒），用于回推历史起点。
func IntervalSeconds(interval string) (int64, bool) {
	d, ok := tickDurations[interval]
	if !ok {
		return 0, false
	}
	return int64(d / time.Second), true
}

var binanceIntervals = map[string]string{
	"d":  "1d",
	"60": "1h",
	"30": "30m",
	"15": "15m",
	"5":  "5m",
	"1":  "1m",
}

// BinanceInterval 将内部周期转换为 Binance K 线接口的写法。
func BinanceInterval(interval string) (string, bool) {
	v, ok := binanceIntervals[interval]
	return v, ok
}
