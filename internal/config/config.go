package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config - основная конфигурация приложения
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Bitrix   BitrixConfig   `yaml:"bitrix"`
	Auth     AuthConfig     `yaml:"auth"`
	YooKassa YooKassaConfig `yaml:"yookassa"`
	Telegram TelegramConfig `yaml:"telegram"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Frontend FrontendConfig `yaml:"frontend"`
	Sync     SyncConfig     `yaml:"sync"`
}

// ServerConfig - настройки HTTP-сервера
type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig - настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// BitrixConfig - настройки доступа к Bitrix24
type BitrixConfig struct {
	// Входящий вебхук вида https://portal.bitrix24.ru/rest/1/xxxx/
	WebhookURL string `yaml:"webhook_url"`
	// ID воронки сделок рассрочки
	CategoryID int `yaml:"category_id"`
}

// AuthConfig - настройки аутентификации
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// Учётные данные администратора
	AdminPhone    string `yaml:"admin_phone"`
	AdminPassword string `yaml:"admin_password"`
}

// YooKassaConfig - настройки приёма онлайн-платежей через ЮKassa
type YooKassaConfig struct {
	ShopID    string `yaml:"shop_id"`
	SecretKey string `yaml:"secret_key"`
	// Секрет подписи вебхуков (HMAC-SHA256)
	WebhookSecret string `yaml:"webhook_secret"`
}

// TelegramConfig - уведомления администратору в Telegram
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// SMTPConfig - отправка magic-ссылок на почту
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// FrontendConfig - адрес личного кабинета (для ссылок в письмах)
type FrontendConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SyncConfig - расписание фоновой синхронизации сделок из Bitrix
type SyncConfig struct {
	// Выражение cron, например "0 */6 * * *"
	Schedule string `yaml:"schedule"`
}

// Load загружает конфигурацию из YAML-файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Переопределение из переменных окружения
	if envPort := os.Getenv("PORT"); envPort != "" {
		cfg.Server.Port = envPort
	}
	if envDBHost := os.Getenv("DB_HOST"); envDBHost != "" {
		cfg.Database.Host = envDBHost
	}
	if envDBPassword := os.Getenv("DB_PASSWORD"); envDBPassword != "" {
		cfg.Database.Password = envDBPassword
	}
	if envWebhook := os.Getenv("BITRIX_WEBHOOK_URL"); envWebhook != "" {
		cfg.Bitrix.WebhookURL = envWebhook
	}
	if envSecret := os.Getenv("JWT_SECRET"); envSecret != "" {
		cfg.Auth.JWTSecret = envSecret
	}
	if envShopID := os.Getenv("YOOKASSA_SHOP_ID"); envShopID != "" {
		cfg.YooKassa.ShopID = envShopID
	}
	if envKey := os.Getenv("YOOKASSA_SECRET_KEY"); envKey != "" {
		cfg.YooKassa.SecretKey = envKey
	}
	if envWebhookSecret := os.Getenv("YOOKASSA_WEBHOOK_SECRET"); envWebhookSecret != "" {
		cfg.YooKassa.WebhookSecret = envWebhookSecret
	}
	if envBotToken := os.Getenv("TELEGRAM_BOT_TOKEN"); envBotToken != "" {
		cfg.Telegram.BotToken = envBotToken
	}
	if envSMTPPassword := os.Getenv("SMTP_PASSWORD"); envSMTPPassword != "" {
		cfg.SMTP.Password = envSMTPPassword
	}

	return &cfg, nil
}
