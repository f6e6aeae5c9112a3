package auth

import (
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
	"github.com/som1one/bitr/internal/services/bitrix"
	"github.com/som1one/bitr/internal/services/email"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// Handler - обработчики авторизации: magic-ссылки для клиентов и
// вход администратора по телефону и паролю
type Handler struct {
	tokens      *TokenManager
	bitrix      *bitrix.Client
	mail        *email.Service
	frontendURL string
	adminPhone  string
	adminPass   string
	log         *logrus.Logger
}

// NewHandler создаёт обработчик авторизации
func NewHandler(tokens *TokenManager, bx *bitrix.Client, mail *email.Service, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{
		tokens:      tokens,
		bitrix:      bx,
		mail:        mail,
		frontendURL: strings.TrimRight(cfg.Frontend.BaseURL, "/"),
		adminPhone:  cfg.Auth.AdminPhone,
		adminPass:   cfg.Auth.AdminPassword,
		log:         log,
	}
}

// MagicLinkRequest - запрос magic-ссылки, указывается email или телефон
type MagicLinkRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// MagicLink выдаёт ссылку для входа в личный кабинет. Ссылка создаётся
// только если по идентификатору находится сделка рассрочки в Bitrix24.
func (h *Handler) MagicLink(c *gin.Context) {
	req := MagicLinkRequest{
		Email: c.Query("email"),
		Phone: c.Query("phone"),
	}
	if req.Email == "" && req.Phone == "" {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите email или телефон"})
			return
		}
	}

	identifier := strings.TrimSpace(req.Email)
	identifierType := IdentifierEmail
	if identifier == "" {
		identifier = normalizePhone(req.Phone)
		identifierType = IdentifierPhone
	}
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите email или телефон"})
		return
	}

	switch identifierType {
	case IdentifierEmail:
		if _, err := mail.ParseAddress(identifier); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный email"})
			return
		}
		identifier = strings.ToLower(identifier)
	case IdentifierPhone:
		if !phoneRe.MatchString(identifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный номер телефона"})
			return
		}
	}

	// Ссылку выдаём только клиентам с действующей рассрочкой
	var contactID string
	var err error
	if identifierType == IdentifierEmail {
		contactID, err = h.bitrix.FindContactIDByEmail(c.Request.Context(), identifier)
	} else {
		contactID, err = h.bitrix.FindContactIDByPhone(c.Request.Context(), identifier)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Bitrix24 недоступен, попробуйте позже"})
		return
	}
	if contactID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Клиент с таким идентификатором не найден"})
		return
	}

	dealID, err := h.bitrix.FindInstallmentDealID(c.Request.Context(), contactID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Bitrix24 недоступен, попробуйте позже"})
		return
	}
	if dealID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Сделка рассрочки не найдена"})
		return
	}

	token, err := h.tokens.GenerateMagicToken(identifier, identifierType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка генерации токена"})
		return
	}
	link := h.frontendURL + "/auth/magic?token=" + token

	// Письмо не должно блокировать ответ, ошибку только логируем
	if identifierType == IdentifierEmail && h.mail.IsEnabled() {
		go func(to, link string) {
			if err := h.mail.SendMagicLink(to, link); err != nil {
				h.log.WithError(err).WithField("email", to).Warn("Не удалось отправить magic-ссылку")
			}
		}(identifier, link)
	}

	h.log.WithFields(logrus.Fields{
		"identifier": identifier,
		"type":       identifierType,
		"deal_id":    dealID,
	}).Info("Выдана magic-ссылка")

	resp := gin.H{
		"success": true,
		"message": "Ссылка для входа создана",
	}
	// Вне продакшена отдаём ссылку прямо в ответе
	if gin.Mode() != gin.ReleaseMode {
		resp["magic_link"] = link
	}
	c.JSON(http.StatusOK, resp)
}

// Verify проверяет magic-токен и выдаёт токен личного кабинета
func (h *Handler) Verify(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Токен не указан"})
		return
	}

	claims, err := h.tokens.Validate(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Ссылка недействительна или устарела"})
		return
	}

	session, err := h.tokens.GenerateSessionToken(claims.Identifier, claims.IdentifierType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка генерации токена"})
		return
	}

	resp := gin.H{
		"valid":           true,
		"identifier":      claims.Identifier,
		"identifier_type": claims.IdentifierType,
		"token":           session,
	}
	if claims.IdentifierType == IdentifierEmail {
		resp["email"] = claims.Identifier
	} else {
		resp["phone"] = claims.Identifier
	}
	c.JSON(http.StatusOK, resp)
}

// AdminLoginRequest - вход администратора
type AdminLoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// AdminLogin проверяет телефон и пароль администратора из конфига
func (h *Handler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Укажите телефон и пароль"})
		return
	}

	if h.adminPhone == "" || h.adminPass == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Вход администратора не настроен"})
		return
	}

	// Телефоны сравниваются по последним 10 цифрам, формат ввода не важен
	if lastDigits(req.Phone, 10) != lastDigits(h.adminPhone, 10) || req.Password != h.adminPass {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный телефон или пароль"})
		return
	}

	token, err := h.tokens.GenerateAdminToken(normalizePhone(h.adminPhone))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка генерации токена"})
		return
	}

	h.log.Info("Вход администратора")
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"is_admin": true,
	})
}

// normalizePhone убирает из номера всё, кроме цифр и ведущего плюса
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lastDigits возвращает последние n цифр номера
func lastDigits(phone string, n int) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return digits
}
