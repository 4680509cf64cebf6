package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"
)

// 中文说明：
// 回测 HTML 报表：收盘价折线叠加买卖散点，文件名带 run id，
// 纯本地生成，不依赖浏览器。

const (
	reportColorClose = "#3b82f6"
	reportColorBuy   = "#34d399"
	reportColorSell  = "#f87171"

	reportWidthPx  = 1400
	reportHeightPx = 560
)

// WriteReport 把回测结果渲染成 HTML 文件，返回文件路径。
func WriteReport(res *Result, dir string) (string, error) {
	if res == nil || len(res.Results) == 0 {
		return "", fmt.Errorf("backtest: 空结果不生成报表")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建报表目录失败: %w", err)
	}

	xAxis := make([]string, 0, len(res.Results))
	closes := make([]opts.LineData, 0, len(res.Results))
	buys := make([]opts.ScatterData, 0, res.Buys)
	sells := make([]opts.ScatterData, 0, res.Sells)
	for _, hr := range res.Results {
		label := axisLabel(hr.Candle.Timestamp, hr.Candle.Unix())
		xAxis = append(xAxis, label)
		closes = append(closes, opts.LineData{Value: hr.Close})
		if hr.Buy != nil {
			buys = append(buys, opts.ScatterData{Value: []any{label, hr.Close}, SymbolSize: 12})
		}
		if hr.Sell != nil {
			sells = append(sells, opts.ScatterData{Value: []any{label, hr.Close}, SymbolSize: 12})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", reportWidthPx),
			Height: fmt.Sprintf("%dpx", reportHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s %s · %s", res.Symbol, res.Interval, res.StrategyName),
			Subtitle: reportSubtitle(res),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("收盘价", closes,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: reportColorClose, Width: 2}),
	)

	if len(buys) > 0 {
		buyScatter := charts.NewScatter()
		buyScatter.SetXAxis(xAxis)
		buyScatter.AddSeries("买入", buys, charts.WithItemStyleOpts(opts.ItemStyle{Color: reportColorBuy}))
		line.Overlap(buyScatter)
	}
	if len(sells) > 0 {
		sellScatter := charts.NewScatter()
		sellScatter.SetXAxis(xAxis)
		sellScatter.AddSeries("卖出", sells, charts.WithItemStyleOpts(opts.ItemStyle{Color: reportColorSell}))
		line.Overlap(sellScatter)
	}

	path := filepath.Join(dir, fmt.Sprintf("backtest_%s.html", res.RunID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建报表文件失败: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return "", fmt.Errorf("渲染报表失败: %w", err)
	}
	return path, nil
}

// reportSubtitle 用 decimal 做金额展示，避免浮点长尾。
func reportSubtitle(res *Result) string {
	profit := decimal.NewFromFloat(res.Profit).Round(2)
	ret := decimal.NewFromFloat(res.ReturnPct).Round(2)
	equity := decimal.NewFromFloat(res.FinalEquity).Round(2)
	return fmt.Sprintf("收益 %s (%s%%) · 期末权益 %s · 买 %d / 卖 %d · run %s",
		profit.String(), ret.String(), equity.String(), res.Buys, res.Sells, res.RunID)
}

func axisLabel(ts string, unix int64) string {
	if unix > 0 {
		return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
	}
	return ts
}
