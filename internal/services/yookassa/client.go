package yookassa

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
)

const apiURL = "https://api.yookassa.ru/v3/payments"

// Client - клиент API ЮKassa
type Client struct {
	shopID        string
	secretKey     string
	webhookSecret string
	client        *http.Client
	log           *logrus.Logger
}

// NewClient создаёт клиент ЮKassa
func NewClient(cfg config.YooKassaConfig, log *logrus.Logger) *Client {
	return &Client{
		shopID:        cfg.ShopID,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: 15 * time.Second},
		log:           log,
	}
}

// Enabled проверяет, заданы ли ключи магазина
func (c *Client) Enabled() bool {
	return c.shopID != "" && c.secretKey != ""
}

// CreatePaymentParams - параметры создания платежа
type CreatePaymentParams struct {
	Amount         int64
	DealID         int64
	ReturnURL      string
	Identifier     string
	IdentifierType string
	Email          string
}

// CreatePaymentResult - созданный платёж
type CreatePaymentResult struct {
	PaymentID       string
	ConfirmationURL string
}

type createPaymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	Description string `json:"description"`
}

// CreatePayment создаёт платёж с редиректом на страницу оплаты.
// deal_id кладётся в metadata строкой и возвращается в вебхуке.
func (c *Client) CreatePayment(ctx context.Context, p CreatePaymentParams) (*CreatePaymentResult, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ЮKassa не настроена: заполните shop_id и secret_key")
	}

	body := map[string]any{
		"amount": map[string]string{
			"value":    fmt.Sprintf("%d.00", p.Amount),
			"currency": "RUB",
		},
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": p.ReturnURL,
		},
		"capture":     true,
		"description": "Платёж по рассрочке",
		"metadata": map[string]string{
			"deal_id":         fmt.Sprintf("%d", p.DealID),
			"email":           p.Email,
			"identifier":      p.Identifier,
			"identifier_type": p.IdentifierType,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос к ЮKassa не удался: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("ЮKassa: 401 Unauthorized. Проверьте shop_id и secret_key магазина")
	}
	if resp.StatusCode != http.StatusOK {
		c.log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(data),
		}).Error("ЮKassa вернула ошибку")
		return nil, fmt.Errorf("ЮKassa вернула статус %d", resp.StatusCode)
	}

	var pr createPaymentResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("не удалось разобрать ответ ЮKassa: %w", err)
	}
	if pr.ID == "" || pr.Confirmation.ConfirmationURL == "" {
		return nil, fmt.Errorf("неполный ответ ЮKassa: id=%q", pr.ID)
	}

	c.log.WithFields(logrus.Fields{
		"payment_id": pr.ID,
		"deal_id":    p.DealID,
		"amount":     p.Amount,
	}).Info("Создан платёж в ЮKassa")

	return &CreatePaymentResult{
		PaymentID:       pr.ID,
		ConfirmationURL: pr.Confirmation.ConfirmationURL,
	}, nil
}

// SignatureConfigured проверяет, задан ли секрет подписи вебхуков
func (c *Client) SignatureConfigured() bool {
	return c.webhookSecret != ""
}

// VerifySignature проверяет HMAC-SHA256 подпись тела вебхука
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
