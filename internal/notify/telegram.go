package notify

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"
)

const _telegramBaseUrl = "https://api.telegram.org"

// Telegram delivers events as markdown messages to one chat. Send errors
// are logged and dropped.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

func NewTelegram(client *http.Client, token, chatID string) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{
		client:  client,
		baseURL: _telegramBaseUrl,
		token:   token,
		chatID:  chatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) Notify(e Event) {
	payload, err := sonic.ConfigFastest.Marshal(telegramMessage{
		ChatID:    t.chatID,
		Text:      fmt.Sprintf("*%s*\n%s", e.Category, e.Message),
		ParseMode: "Markdown",
	})
	if err != nil {
		logs.Errorf("telegram: marshal message, err: %+v", err)
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		logs.Errorf("telegram: send message, err: %+v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logs.Errorf("telegram: send message, status: %d", resp.StatusCode)
	}
}
