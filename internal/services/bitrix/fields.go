package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Пользовательские поля сделки рассрочки в CRM
const (
	FieldPaidAmount   = "UF_PAID_AMOUNT"       // оплаченная сумма
	FieldTermMonths   = "UF_TERM_MONTHS"       // срок рассрочки в месяцах
	FieldProjectType  = "UF_CRM_1759329251984" // тип проекта (enum)
	FieldProjectStart = "UF_CRM_1759329496690" // дата начала проекта
	FieldLocation     = "UF_CRM_1765399691"    // где находится объект
)

const fieldsCacheTTL = 10 * time.Minute

// fieldsCache - кэш описаний полей сделки (crm.deal.fields).
// Нужен для разворачивания enum-значений: Bitrix хранит в сделке ID
// варианта, а не текст. Описания меняются редко, поэтому держим их
// 10 минут; при ошибке обновления отдаём устаревшую копию.
type fieldsCache struct {
	client *Client

	mu        sync.Mutex
	data      map[string]fieldMeta
	fetchedAt time.Time
}

type fieldMeta struct {
	Items []enumItem `json:"items"`
}

type enumItem struct {
	ID    string `json:"ID"`
	Value string `json:"VALUE"`
}

func newFieldsCache(client *Client) *fieldsCache {
	return &fieldsCache{client: client}
}

func (fc *fieldsCache) get(ctx context.Context) map[string]fieldMeta {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.data != nil && time.Since(fc.fetchedAt) < fieldsCacheTTL {
		return fc.data
	}

	resp, err := fc.client.call(ctx, "crm.deal.fields", map[string]any{})
	if err != nil {
		fc.client.log.WithError(err).Warn("Не удалось получить описания полей сделки")
		return fc.data
	}
	var data map[string]fieldMeta
	if err := json.Unmarshal(resp.Result, &data); err != nil {
		fc.client.log.WithError(err).Warn("Не удалось разобрать описания полей сделки")
		return fc.data
	}
	fc.data = data
	fc.fetchedAt = time.Now()
	return fc.data
}

// ResolveEnum разворачивает сырое значение enum-поля в текст. Сырое
// значение бывает одиночным ID, списком ID или false; при недоступном
// кэше возвращаются ID как есть.
func (c *Client) ResolveEnum(ctx context.Context, fieldID string, raw any) string {
	ids := enumIDs(raw)
	if len(ids) == 0 {
		return ""
	}

	fields := c.fields.get(ctx)
	mapping := map[string]string{}
	if meta, ok := fields[fieldID]; ok {
		for _, item := range meta.Items {
			if item.ID != "" && item.Value != "" {
				mapping[item.ID] = item.Value
			}
		}
	}

	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " "
		}
		if v, ok := mapping[id]; ok {
			out += v
		} else {
			out += id
		}
	}
	return out
}

// enumIDs приводит сырое значение enum-поля к списку строковых ID
func enumIDs(raw any) []string {
	var ids []string
	add := func(v any) {
		switch x := v.(type) {
		case nil, bool:
		case string:
			if x != "" {
				ids = append(ids, x)
			}
		case float64:
			ids = append(ids, fmt.Sprintf("%.0f", x))
		default:
			ids = append(ids, fmt.Sprintf("%v", x))
		}
	}
	if list, ok := raw.([]any); ok {
		for _, v := range list {
			add(v)
		}
	} else {
		add(raw)
	}
	return ids
}

// enrichProjectFields добавляет в сделку нормализованные проектные поля:
// project_type, project_start_date (DD.MM.YYYY), object_location.
// Исходные UF_CRM_* остаются нетронутыми.
func (c *Client) enrichProjectFields(ctx context.Context, deal RawDeal) {
	deal["project_type"] = c.ResolveEnum(ctx, FieldProjectType, deal[FieldProjectType])
	deal["project_start_date"] = FormatISODate(deal[FieldProjectStart])
	if loc, ok := deal[FieldLocation].(string); ok {
		deal["object_location"] = loc
	} else {
		deal["object_location"] = ""
	}
}

// FormatISODate приводит ISO-дату Bitrix к виду DD.MM.YYYY.
// Принимает '2025-09-23T03:00:00+03:00', '2025-09-23' и т.п.
func FormatISODate(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("02.01.2006")
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t.Format("02.01.2006")
		}
	}
	return s
}

// ParseISOTime разбирает ISO-дату Bitrix в time.Time
func ParseISOTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return &t
		}
	}
	return nil
}
