package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/config"
	"github.com/som1one/bitr/internal/handlers"
	"github.com/som1one/bitr/internal/middleware"
	"github.com/som1one/bitr/internal/repository"
	"github.com/som1one/bitr/internal/services/auth"
	"github.com/som1one/bitr/internal/services/bitrix"
	"github.com/som1one/bitr/internal/services/email"
	"github.com/som1one/bitr/internal/services/export"
	"github.com/som1one/bitr/internal/services/installment"
	syncsvc "github.com/som1one/bitr/internal/services/sync"
	"github.com/som1one/bitr/internal/services/telegram"
	"github.com/som1one/bitr/internal/services/yookassa"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	// .env удобен для локальной разработки, в продакшене его может не быть
	if err := godotenv.Load(); err == nil {
		log.Debug("Переменные окружения загружены из .env")
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.WithError(err).Fatal("Ошибка загрузки конфигурации")
	}

	db, err := repository.NewPostgresDB(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Ошибка подключения к БД")
	}
	repo := repository.NewRepository(db)

	// Инициализация сервисов
	bitrixClient := bitrix.NewClient(cfg.Bitrix, log)
	kassa := yookassa.NewClient(cfg.YooKassa, log)
	notifier := telegram.NewNotifier(cfg.Telegram, log)
	mailer := email.NewService(cfg.SMTP, log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	installmentService := installment.NewService(repo, bitrixClient, kassa, notifier, log)
	syncService := syncsvc.NewService(repo, bitrixClient, log)
	pdfGen := export.NewPDFGenerator(os.Getenv("FONTS_DIR"))

	// Фоновая синхронизация сделок из Bitrix24
	c := cron.New(cron.WithLocation(time.UTC))
	schedule := cfg.Sync.Schedule
	if schedule == "" {
		schedule = "0 */6 * * *"
	}
	_, err = c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := syncService.SyncDeals(ctx); err != nil {
			log.WithError(err).Error("Ошибка синхронизации сделок")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Ошибка добавления cron-задачи синхронизации")
	}
	c.Start()
	defer c.Stop()

	// Инициализация HTTP-сервера
	router := gin.Default()
	router.Use(middleware.CORS())

	authHandler := auth.NewHandler(tokens, bitrixClient, mailer, cfg, log)
	h := handlers.NewHandler(installmentService, repo, kassa, pdfGen, cfg, log)

	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		// Авторизация (без middleware)
		api.POST("/auth/magic-link", authHandler.MagicLink)
		api.GET("/auth/verify", authHandler.Verify)
		api.POST("/auth/admin/login", authHandler.AdminLogin)

		// Личный кабинет клиента
		api.GET("/installment/my", middleware.Auth(tokens), h.GetMyInstallment)

		// Платежи
		api.POST("/payments/create", middleware.Auth(tokens), h.CreatePayment)
		api.POST("/payments/webhook", h.PaymentWebhook)
		api.GET("/payments/logs", middleware.Auth(tokens), middleware.RequireAdmin(), h.GetPaymentLogs)

		// Админка
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(tokens), middleware.RequireAdmin())
		{
			admin.GET("/deals", h.GetDeals)
			admin.GET("/deals/export", h.ExportDeals)
			admin.GET("/deals/export/excel", h.ExportDealsExcel)
			admin.GET("/deals/:id", h.GetDeal)
			admin.PUT("/deals/:id/settings", h.UpdateDealSettings)
			admin.POST("/deals/:id/cash-payment", h.RecordCashPayment)
			admin.GET("/deals/:id/schedule/pdf", h.GetSchedulePDF)
		}
	}

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("Сервер запущен")
	if err := router.Run(":" + port); err != nil {
		log.WithError(err).Fatal("Ошибка запуска сервера")
	}
}
