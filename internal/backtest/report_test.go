package backtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteReportProducesHTML(t *testing.T) {
	src := &stubSource{candles: candlesFromCloses(100, 110, 90)}
	runner := testRunner(t, src)

	res, err := runner.Run(context.Background(), momentumRequest())
	assert.NoError(t, err)

	dir := t.TempDir()
	path, err := WriteReport(res, dir)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".html"))
	assert.Contains(t, path, res.RunID)

	raw, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), "BTCUSDT")
}

func TestWriteReportRejectsEmptyResult(t *testing.T) {
	_, err := WriteReport(nil, t.TempDir())
	assert.Error(t, err)

	_, err = WriteReport(&Result{}, t.TempDir())
	assert.Error(t, err)
}
