package email

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
)

// loginAuth реализует SMTP AUTH LOGIN (не поддерживается стандартной библиотекой Go)
type loginAuth struct {
	username, password string
}

func LoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte(a.username), nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch strings.ToLower(string(fromServer)) {
		case "username:", "login:":
			return []byte(a.username), nil
		case "password:":
			return []byte(a.password), nil
		default:
			return nil, errors.New("неизвестный запрос SMTP LOGIN: " + string(fromServer))
		}
	}
	return nil, nil
}

// Service - сервис отправки email
type Service struct {
	cfg config.SMTPConfig
	log *logrus.Logger
}

// NewService создаёт новый email-сервис
func NewService(cfg config.SMTPConfig, log *logrus.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// IsEnabled проверяет, настроен ли SMTP
func (s *Service) IsEnabled() bool {
	return s.cfg.Host != "" && s.cfg.From != ""
}

// SendMagicLink отправляет ссылку для входа в личный кабинет
func (s *Service) SendMagicLink(to, link string) error {
	subject := "Вход в личный кабинет рассрочки"
	body := fmt.Sprintf(
		"<p>Здравствуйте!</p>"+
			"<p>Для входа в личный кабинет перейдите по ссылке:</p>"+
			"<p><a href=\"%s\">%s</a></p>"+
			"<p>Ссылка действительна 15 минут. Если вы не запрашивали вход, просто проигнорируйте это письмо.</p>",
		link, link)
	return s.send(to, subject, body)
}

// send отправляет простое HTML-письмо
func (s *Service) send(to, subject, htmlBody string) error {
	if !s.IsEnabled() {
		s.log.WithField("to", to).Warn("SMTP не настроен, письмо не отправлено")
		return fmt.Errorf("SMTP не настроен")
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("не удалось подключиться к SMTP: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("ошибка SMTP клиента: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.cfg.Host}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("ошибка STARTTLS: %w", err)
		}
	}

	if s.cfg.User != "" {
		// Сначала LOGIN, потом PLAIN
		auth := LoginAuth(s.cfg.User, s.cfg.Password)
		if err := client.Auth(auth); err != nil {
			s.log.WithError(err).Debug("LOGIN auth не удался, пробуем PLAIN")
			plainAuth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
			if err := client.Auth(plainAuth); err != nil {
				return fmt.Errorf("ошибка авторизации SMTP: %w", err)
			}
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("ошибка RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка DATA: %w", err)
	}
	defer w.Close()

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", s.cfg.From))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: =?utf-8?B?%s?=\r\n", base64.StdEncoding.EncodeToString([]byte(subject))))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(htmlBody)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	s.log.WithField("to", to).Info("Письмо отправлено")
	return nil
}
