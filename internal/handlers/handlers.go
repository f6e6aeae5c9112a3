package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
	"github.com/som1one/bitr/internal/repository"
	"github.com/som1one/bitr/internal/services/export"
	"github.com/som1one/bitr/internal/services/installment"
	"github.com/som1one/bitr/internal/services/yookassa"
)

// Handler - обработчики API рассрочек
type Handler struct {
	service     *installment.Service
	repo        *repository.Repository
	kassa       *yookassa.Client
	pdf         *export.PDFGenerator
	frontendURL string
	log         *logrus.Logger
}

// NewHandler создаёт обработчик API
func NewHandler(service *installment.Service, repo *repository.Repository, kassa *yookassa.Client, pdf *export.PDFGenerator, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{
		service:     service,
		repo:        repo,
		kassa:       kassa,
		pdf:         pdf,
		frontendURL: cfg.Frontend.BaseURL,
		log:         log,
	}
}

// Health проверяет доступность сервиса
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// respondError переводит ошибки сервисного слоя в HTTP-статусы
func (h *Handler) respondError(c *gin.Context, err error) {
	var vErr installment.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, installment.ErrDealNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Рассрочка не найдена"})
	case errors.Is(err, installment.ErrDuplicatePayment):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).Error("Внутренняя ошибка")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сервера"})
	}
}

// GetMyInstallment возвращает рассрочку текущего клиента
func (h *Handler) GetMyInstallment(c *gin.Context) {
	identifier := c.GetString("identifier")
	identifierType := c.GetString("identifierType")
	if identifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Не авторизован"})
		return
	}

	var view *installment.View
	var err error
	if identifierType == "phone" {
		view, err = h.service.GetByPhone(c.Request.Context(), identifier)
	} else {
		view, err = h.service.GetByEmail(c.Request.Context(), identifier)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// === Админка ===

// GetDeals возвращает все рассрочки со статистикой
func (h *Handler) GetDeals(c *gin.Context) {
	result, err := h.service.AllDeals(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportDeals выгружает все рассрочки в JSON-файл
func (h *Handler) ExportDeals(c *gin.Context) {
	result, err := h.service.AllDeals(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("deals_%s.json", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.JSON(http.StatusOK, result)
}

// ExportDealsExcel выгружает все рассрочки в XLSX
func (h *Handler) ExportDealsExcel(c *gin.Context) {
	result, err := h.service.AllDeals(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	data, err := export.DealsExcel(result)
	if err != nil {
		h.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("deals_%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GetDeal возвращает одну рассрочку для админки
func (h *Handler) GetDeal(c *gin.Context) {
	dealID, ok := h.dealID(c)
	if !ok {
		return
	}
	view, err := h.service.GetByDealID(c.Request.Context(), dealID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateDealSettings обновляет настройки рассрочки
func (h *Handler) UpdateDealSettings(c *gin.Context) {
	dealID, ok := h.dealID(c)
	if !ok {
		return
	}

	var req installment.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат запроса"})
		return
	}

	result, err := h.service.UpdateSettings(c.Request.Context(), dealID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecordCashPayment фиксирует оплату наличными
func (h *Handler) RecordCashPayment(c *gin.Context) {
	dealID, ok := h.dealID(c)
	if !ok {
		return
	}

	var req installment.CashPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат запроса"})
		return
	}

	result, err := h.service.RecordCashPayment(c.Request.Context(), dealID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSchedulePDF отдаёт график платежей в PDF
func (h *Handler) GetSchedulePDF(c *gin.Context) {
	dealID, ok := h.dealID(c)
	if !ok {
		return
	}

	view, err := h.service.GetByDealID(c.Request.Context(), dealID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	data, err := h.pdf.SchedulePDF(dealID, view)
	if err != nil {
		h.log.WithError(err).WithField("deal_id", dealID).Error("Ошибка генерации PDF")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка генерации PDF"})
		return
	}

	filename := fmt.Sprintf("schedule_%d.pdf", dealID)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", data)
}

// === Платежи ===

// PaymentRequest - запрос на создание онлайн-платежа
type PaymentRequest struct {
	Amount int64 `json:"amount"`
}

// CreatePayment создаёт онлайн-платёж через ЮKassa
func (h *Handler) CreatePayment(c *gin.Context) {
	identifier := c.GetString("identifier")
	identifierType := c.GetString("identifierType")
	if identifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Не авторизован"})
		return
	}

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат запроса"})
		return
	}

	result, err := h.service.CreateOnlinePayment(c.Request.Context(), identifier, identifierType, h.frontendURL, req.Amount)
	if err != nil {
		var vErr installment.ValidationError
		if !errors.As(err, &vErr) && !errors.Is(err, installment.ErrDealNotFound) {
			// Ошибки платёжного провайдера не маскируем под 500
			h.log.WithError(err).Error("Ошибка создания платежа в ЮKassa")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Ошибка при создании платежа: " + err.Error()})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PaymentWebhook принимает уведомления ЮKassa
func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не удалось прочитать тело запроса"})
		return
	}

	// Подпись проверяется, когда настроен webhook_secret
	if h.kassa.SignatureConfigured() {
		signature := c.GetHeader("X-YooMoney-Signature")
		if !h.kassa.VerifySignature(body, signature) {
			h.log.Warn("Вебхук с неверной подписью отклонён")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверная подпись вебхука"})
			return
		}
	}

	var payload installment.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный JSON в вебхуке"})
		return
	}

	if err := h.service.ProcessWebhook(c.Request.Context(), payload); err != nil {
		var vErr installment.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		h.log.WithError(err).Error("Ошибка обработки вебхука")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка обработки вебхука"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetPaymentLogs возвращает журнал платежей
func (h *Handler) GetPaymentLogs(c *gin.Context) {
	if dealIDStr := c.Query("deal_id"); dealIDStr != "" {
		dealID, err := strconv.ParseInt(dealIDStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный deal_id"})
			return
		}
		logs, err := h.repo.GetPaymentLogsByDeal(dealID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
		return
	}

	logs, err := h.repo.GetPaymentLogs(200)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// dealID разбирает :id из пути
func (h *Handler) dealID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID сделки"})
		return 0, false
	}
	return id, true
}
