package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
)

// 中文说明：
// Telegram 通知器：机器人成交后把关键信息推送到指定群/频道。
// 推送失败不影响交易主流程，调用方只记日志。

const sendAttempts = 3

type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{BotToken: botToken, ChatID: chatID, Client: &http.Client{Timeout: 15 * time.Second}}
}

// Enabled 报告通知器是否配置齐全，未配置时调用方应跳过推送。
func (t *Telegram) Enabled() bool {
	return t != nil && t.BotToken != "" && t.ChatID != ""
}

// SendText 发送文本消息，失败按指数退避重试，最多 3 次。
func (t *Telegram) SendText(text string) error {
	if !t.Enabled() {
		return fmt.Errorf("Telegram 配置不完整")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)

	payload := map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	body, _ := json.Marshal(payload)

	delay := &backoff.Backoff{Min: time.Second, Max: 8 * time.Second, Factor: 2, Jitter: true}
	var lastErr error
	for i := 0; i < sendAttempts; i++ {
		req, _ := http.NewRequest("POST", url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(delay.Duration())
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
		time.Sleep(delay.Duration())
	}
	return lastErr
}
