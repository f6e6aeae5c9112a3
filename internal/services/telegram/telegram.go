package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
)

// Notifier отправляет уведомления администратору через Telegram Bot API.
// Все отправки best-effort: платёж не должен падать из-за недоступного
// Telegram.
type Notifier struct {
	token  string
	chatID string
	client *http.Client
	log    *logrus.Logger
}

// NewNotifier создаёт отправителя уведомлений
func NewNotifier(cfg config.TelegramConfig, log *logrus.Logger) *Notifier {
	return &Notifier{
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Enabled сообщает, настроен ли Telegram
func (n *Notifier) Enabled() bool {
	return n.token != "" && n.chatID != ""
}

// Send отправляет сообщение в настроенный чат
func (n *Notifier) Send(ctx context.Context, text string) error {
	if !n.Enabled() {
		return fmt.Errorf("telegram не настроен")
	}

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.token)
	payload, err := json.Marshal(map[string]any{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram ответил %d: %s", resp.StatusCode, string(body)[:min(200, len(body))])
	}
	return nil
}

// NotifyPayment отправляет уведомление о платеже. Ошибки только
// логируются.
func (n *Notifier) NotifyPayment(ctx context.Context, dealID int64, amount int64, paymentID, method, title, email string) {
	if !n.Enabled() {
		return
	}
	msg := FormatPaymentNotification(dealID, amount, paymentID, method, title, email)
	if err := n.Send(ctx, msg); err != nil {
		n.log.WithError(err).WithField("deal_id", dealID).
			Warn("Не удалось отправить уведомление в Telegram")
	}
}

// FormatPaymentNotification собирает текст уведомления о платеже
func FormatPaymentNotification(dealID int64, amount int64, paymentID, method, title, email string) string {
	var b strings.Builder
	b.WriteString("💰 <b>Новый платёж по рассрочке</b>\n\n")
	fmt.Fprintf(&b, "Сделка: %d\n", dealID)
	if title != "" {
		fmt.Fprintf(&b, "Название: %s\n", title)
	}
	if email != "" {
		fmt.Fprintf(&b, "Email: %s\n", email)
	}
	fmt.Fprintf(&b, "Сумма: %d ₽\n", amount)
	fmt.Fprintf(&b, "Способ: %s\n", methodLabel(method))
	fmt.Fprintf(&b, "ID платежа: %s", paymentID)
	return b.String()
}

func methodLabel(method string) string {
	switch method {
	case "cash":
		return "наличные"
	case "online":
		return "ЮKassa"
	}
	return method
}
