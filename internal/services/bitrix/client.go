package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
	"golang.org/x/time/rate"
)

// Тип оплаты, по которому отбираются сделки рассрочки в CRM
const installmentPaymentType = "Рассрочка"

// Client - клиент REST API Bitrix24 (входящий вебхук).
// Все запросы проходят через общий rate limiter: у вебхука Bitrix лимит
// около 2 запросов в секунду, при превышении портал начинает отвечать
// QUERY_LIMIT_EXCEEDED.
type Client struct {
	webhookURL string
	categoryID int
	client     *http.Client
	limiter    *rate.Limiter
	fields     *fieldsCache
	log        *logrus.Logger
}

// NewClient создаёт новый клиент Bitrix24
func NewClient(cfg config.BitrixConfig, log *logrus.Logger) *Client {
	c := &Client{
		webhookURL: strings.TrimRight(cfg.WebhookURL, "/"),
		categoryID: cfg.CategoryID,
		client:     &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		log:        log,
	}
	c.fields = newFieldsCache(c)
	return c
}

// apiResponse - конверт ответа REST API Bitrix24
type apiResponse struct {
	Result           json.RawMessage `json:"result"`
	Total            int             `json:"total"`
	Next             *int            `json:"next"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// call выполняет метод REST API. Payload сериализуется в JSON-тело POST.
func (c *Client) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/%s", c.webhookURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result apiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа %s: %v, raw: %s", method, err, string(raw)[:min(200, len(raw))])
	}
	if result.Error != "" {
		return nil, fmt.Errorf("ошибка Bitrix24 %s: %s (%s)", method, result.Error, result.ErrorDescription)
	}
	return &result, nil
}

// Contact - контакт CRM
type Contact struct {
	ID       string         `json:"ID"`
	Name     string         `json:"NAME"`
	LastName string         `json:"LAST_NAME"`
	Phone    []contactValue `json:"PHONE"`
	Email    []contactValue `json:"EMAIL"`
}

type contactValue struct {
	Value string `json:"VALUE"`
}

// FullName возвращает имя и фамилию контакта одной строкой
func (ct Contact) FullName() string {
	return strings.TrimSpace(ct.Name + " " + ct.LastName)
}

// FirstPhone возвращает первый телефон контакта
func (ct Contact) FirstPhone() string {
	if len(ct.Phone) > 0 {
		return ct.Phone[0].Value
	}
	return ""
}

// FirstEmail возвращает первый email контакта
func (ct Contact) FirstEmail() string {
	if len(ct.Email) > 0 {
		return ct.Email[0].Value
	}
	return ""
}

// listItem - сокращённая сделка из crm.deal.list
type listItem struct {
	ID        string `json:"ID"`
	ContactID string `json:"CONTACT_ID"`
}

// FindContactIDByEmail ищет контакт по email. Пустая строка, если контакта
// нет: без контакта сделку рассрочки искать не по чему.
func (c *Client) FindContactIDByEmail(ctx context.Context, email string) (string, error) {
	resp, err := c.call(ctx, "crm.contact.list", map[string]any{
		"filter": map[string]any{"EMAIL": email},
		"select": []string{"ID"},
	})
	if err != nil {
		return "", err
	}
	var contacts []listItem
	if err := json.Unmarshal(resp.Result, &contacts); err != nil {
		return "", fmt.Errorf("ошибка парсинга списка контактов: %w", err)
	}
	if len(contacts) == 0 {
		return "", nil
	}
	return contacts[0].ID, nil
}

// FindContactIDByPhone ищет контакт по телефону. Bitrix хранит номера в
// разных форматах, поэтому сначала перебираются варианты записи
// (+7/7/8/без кода), затем телефоны контактов сделок рассрочки
// сравниваются по последним 10 цифрам.
func (c *Client) FindContactIDByPhone(ctx context.Context, phone string) (string, error) {
	for _, variant := range phoneVariants(phone) {
		resp, err := c.call(ctx, "crm.contact.list", map[string]any{
			"filter": map[string]any{"PHONE": variant},
			"select": []string{"ID"},
		})
		if err != nil {
			return "", err
		}
		var contacts []listItem
		if err := json.Unmarshal(resp.Result, &contacts); err != nil {
			return "", fmt.Errorf("ошибка парсинга списка контактов: %w", err)
		}
		if len(contacts) > 0 {
			return contacts[0].ID, nil
		}
	}

	// Точный поиск не нашёл: сверяем телефоны контактов сделок рассрочки
	deals, err := c.ListInstallmentDeals(ctx)
	if err != nil {
		return "", err
	}
	want := phoneTail(phone)
	if want == "" {
		return "", nil
	}
	for _, d := range deals {
		contactID, _ := d["CONTACT_ID"].(string)
		if contactID == "" {
			continue
		}
		contact, err := c.GetContact(ctx, contactID)
		if err != nil {
			c.log.WithError(err).WithField("contact_id", contactID).
				Debug("Не удалось проверить контакт при поиске по телефону")
			continue
		}
		for _, p := range contact.Phone {
			if phoneTail(p.Value) == want {
				return contactID, nil
			}
		}
	}
	return "", nil
}

// GetContact возвращает контакт по ID
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	resp, err := c.call(ctx, "crm.contact.get", map[string]any{"id": contactID})
	if err != nil {
		return nil, err
	}
	var contact Contact
	if err := json.Unmarshal(resp.Result, &contact); err != nil {
		return nil, fmt.Errorf("ошибка парсинга контакта %s: %w", contactID, err)
	}
	return &contact, nil
}

// FindInstallmentDealID возвращает ID последней сделки рассрочки контакта
func (c *Client) FindInstallmentDealID(ctx context.Context, contactID string) (string, error) {
	resp, err := c.call(ctx, "crm.deal.list", map[string]any{
		"filter": map[string]any{
			"CONTACT_ID":   contactID,
			"TYPE_PAYMENT": installmentPaymentType,
		},
		"select": []string{"ID", "TITLE", "OPPORTUNITY", "CONTACT_ID"},
		"order":  map[string]string{"DATE_CREATE": "DESC"},
	})
	if err != nil {
		return "", err
	}
	var deals []listItem
	if err := json.Unmarshal(resp.Result, &deals); err != nil {
		return "", fmt.Errorf("ошибка парсинга списка сделок: %w", err)
	}
	if len(deals) == 0 {
		return "", nil
	}
	return deals[0].ID, nil
}

// GetFullDeal возвращает полные данные сделки, включая пользовательские
// поля (crm.deal.list их не отдаёт, нужен crm.deal.get). Имя и телефон
// контакта подмешиваются в CONTACT_NAME/CONTACT_PHONE, проектные
// enum-поля разворачиваются в человекочитаемые значения.
func (c *Client) GetFullDeal(ctx context.Context, dealID string) (RawDeal, error) {
	resp, err := c.call(ctx, "crm.deal.get", map[string]any{"id": dealID})
	if err != nil {
		return nil, err
	}
	var deal RawDeal
	if err := json.Unmarshal(resp.Result, &deal); err != nil {
		return nil, fmt.Errorf("ошибка парсинга сделки %s: %w", dealID, err)
	}

	if contactID, _ := deal["CONTACT_ID"].(string); contactID != "" {
		contact, err := c.GetContact(ctx, contactID)
		if err != nil {
			c.log.WithError(err).WithField("contact_id", contactID).
				Debug("Не удалось получить контакт сделки")
		} else {
			if name := contact.FullName(); name != "" {
				deal["CONTACT_NAME"] = name
			}
			if phone := contact.FirstPhone(); phone != "" {
				deal["CONTACT_PHONE"] = phone
			}
			if email := contact.FirstEmail(); email != "" {
				deal["CONTACT_EMAIL"] = email
			}
		}
	}

	c.enrichProjectFields(ctx, deal)
	return deal, nil
}

// ListInstallmentDeals возвращает все сделки рассрочки. Список
// постраничный (по 50), страницы выбираются по курсору next.
func (c *Client) ListInstallmentDeals(ctx context.Context) ([]RawDeal, error) {
	var all []RawDeal
	start := 0
	for {
		resp, err := c.call(ctx, "crm.deal.list", map[string]any{
			"filter": map[string]any{"TYPE_PAYMENT": installmentPaymentType},
			"select": []string{
				"ID", "TITLE", "OPPORTUNITY", "CONTACT_ID", "ASSIGNED_BY_ID",
				"STAGE_ID", "DATE_CREATE", "DATE_MODIFY", "BEGINDATE", "CLOSEDATE",
				"CURRENCY_ID", "COMMENTS", "SOURCE_ID", "COMPANY_ID", "CATEGORY_ID",
			},
			"order": map[string]string{"DATE_CREATE": "DESC"},
			"start": start,
		})
		if err != nil {
			return nil, err
		}
		var page []RawDeal
		if err := json.Unmarshal(resp.Result, &page); err != nil {
			return nil, fmt.Errorf("ошибка парсинга списка сделок: %w", err)
		}
		all = append(all, page...)
		if resp.Next == nil {
			break
		}
		start = *resp.Next
	}
	return all, nil
}

// UpdatePaidAmount записывает в сделку Bitrix полную оплаченную сумму
// (не прибавку). Ошибки CRM не фатальны, источник истины локальная БД,
// поэтому просто повторяем с нарастающей задержкой.
func (c *Client) UpdatePaidAmount(ctx context.Context, dealID string, amount int64) error {
	const maxRetries = 3
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.call(ctx, "crm.deal.update", map[string]any{
			"id":     dealID,
			"fields": map[string]any{FieldPaidAmount: amount},
		})
		if err == nil {
			var ok bool
			if json.Unmarshal(resp.Result, &ok) == nil && ok {
				return nil
			}
			err = fmt.Errorf("Bitrix24 отклонил обновление сделки %s", dealID)
		}
		lastErr = err
		c.log.WithError(err).WithFields(logrus.Fields{
			"deal_id": dealID,
			"attempt": attempt,
		}).Warn("Не удалось обновить оплаченную сумму в Bitrix24")
		if attempt < maxRetries {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("обновление сделки %s не удалось после %d попыток: %w", dealID, maxRetries, lastErr)
}

// phoneVariants строит варианты записи российского номера для точного
// поиска в CRM
func phoneVariants(phone string) []string {
	cleaned := cleanPhone(phone)
	var variants []string
	switch {
	case strings.HasPrefix(cleaned, "7"):
		variants = []string{"+7" + cleaned[1:], cleaned, cleaned[1:]}
	case strings.HasPrefix(cleaned, "8"):
		variants = []string{"+7" + cleaned[1:], "7" + cleaned[1:], cleaned}
	default:
		variants = []string{"+7" + cleaned, "7" + cleaned, cleaned}
	}
	if phone != "" && phone != variants[0] {
		variants = append([]string{phone}, variants...)
	}
	return variants
}

// cleanPhone убирает из номера всё, кроме цифр
func cleanPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneTail возвращает последние 10 цифр номера (номер без кода страны)
func phoneTail(phone string) string {
	digits := cleanPhone(phone)
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}
