package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/primesmshub/sms-hub-api/bot"
	"github.com/primesmshub/sms-hub-api/config"
	"github.com/primesmshub/sms-hub-api/controllers"
	"github.com/primesmshub/sms-hub-api/middleware"
	"github.com/primesmshub/sms-hub-api/poller"
	"github.com/primesmshub/sms-hub-api/relay"
	"github.com/primesmshub/sms-hub-api/services"
	"github.com/primesmshub/sms-hub-api/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// externals are the third-party systems the API talks to
type externals struct {
	vendor    services.NumberVendor
	messenger services.Messenger
	gateway   services.PaymentGateway
	archive   services.PayloadArchive // optional
	userInfo  services.UserInfoProvider
}

// newExternals builds the production adapters from configuration
func newExternals(ctx context.Context, cfg *config.Config, logger *slog.Logger) externals {
	ext := externals{
		vendor:    services.NewFiveSimClient(cfg),
		messenger: services.NewTelegramClient(cfg),
		gateway:   services.NewPaystackClient(cfg),
		userInfo:  services.NewAuth0Service(cfg),
	}
	if !cfg.TelegramEnabled() {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, operator notifications will fail")
	}
	if cfg.S3Enabled() {
		archive, err := services.NewS3Archive(ctx, cfg)
		if err != nil {
			logger.Error("payment archive disabled", "error", err)
		} else {
			ext.archive = archive
		}
	}
	return ext
}

// application holds the wired components behind the HTTP router
type application struct {
	cfg      *config.Config
	db       *gorm.DB
	rdb      *redis.Client
	vendor   services.NumberVendor
	logger   *slog.Logger
	registry *relay.Registry
	sessions *poller.Sessions

	// auth guards the /api routes that act on an account
	auth gin.HandlerFunc

	users    *controllers.UserController
	orders   *controllers.OrderController
	accounts *controllers.AccountController
	funds    *controllers.FundsController
	messages *controllers.MessageController
	telegram *controllers.TelegramController
	sockets  *controllers.SocketController
}

func newApplication(cfg *config.Config, db *gorm.DB, rdb *redis.Client, ext externals, logger *slog.Logger) (*application, error) {
	var (
		messageLog   services.MessageLog
		correlations services.CorrelationStore
	)
	if rdb != nil {
		messageLog = services.NewRedisMessageLog(rdb, cfg.MessageLogCapacity, logger)
		correlations = services.NewRedisCorrelationStore(rdb, cfg.CorrelationTTL)
	} else {
		logger.Info("REDIS_ADDR not set, relay history is kept in memory")
		messageLog = services.NewMemoryMessageLog(cfg.MessageLogCapacity)
		correlations = services.NewMemoryCorrelationStore(cfg.CorrelationTTL)
	}

	operatorChat := ""
	if cfg.DefaultChatID != 0 {
		operatorChat = strconv.FormatInt(cfg.DefaultChatID, 10)
	}

	registry := relay.NewRegistry()
	users := services.NewUserService(db, ext.userInfo)
	orders := services.NewOrderService(db, ext.vendor, services.OrderOptions{
		HoldAmount:  utils.ToCents(cfg.PurchaseHoldAmount),
		RefundRatio: cfg.CancelRefundRatio,
	}, logger)
	wallets := services.NewWalletService(db)
	payments := services.NewPaymentService(db, services.PaymentDeps{
		Gateway:        ext.gateway,
		Archive:        ext.archive,
		Messenger:      ext.messenger,
		OperatorChatID: operatorChat,
		Publisher:      registry,
	}, logger)

	router := relay.NewRouter(relay.RouterDeps{
		Registry:       registry,
		Log:            messageLog,
		Messenger:      ext.messenger,
		Correlations:   correlations,
		OperatorChatID: operatorChat,
		Logger:         logger,
	})

	p, err := poller.New(orders, poller.Options{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts}, logger)
	if err != nil {
		return nil, err
	}
	sessions := poller.NewSessions(p)

	hub := relay.NewHub(relay.HubDeps{
		Registry: registry,
		Router:   router,
		Sessions: sessions,
		Owners:   users,
		Logger:   logger,
	}, relay.HubOptions{AllowedOrigins: cfg.AllowedOrigins})

	commands := bot.New(ext.messenger, users, orders, wallets, cfg.ServerURL, logger)

	return &application{
		cfg:      cfg,
		db:       db,
		rdb:      rdb,
		vendor:   ext.vendor,
		logger:   logger,
		registry: registry,
		sessions: sessions,
		users:    controllers.NewUserController(users),
		orders:   controllers.NewOrderController(users, orders),
		accounts: controllers.NewAccountController(users, orders, wallets),
		funds:    controllers.NewFundsController(users, payments, cfg.PaystackPublicKey),
		messages: controllers.NewMessageController(router, ext.messenger, logger),
		telegram: controllers.NewTelegramController(router, commands, cfg.TelegramBotID(), logger),
		sockets:  controllers.NewSocketController(hub),
	}, nil
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", "x-api-key")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	cc.MaxAge = 12 * time.Hour
	return cc
}

// setupRouter registers every route of the API
func setupRouter(app *application) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), middleware.Recovery(app.cfg, app.logger))
	router.Use(cors.New(corsConfig(app.cfg.AllowedOrigins)))

	router.GET("/health", healthCheck)
	router.GET("/health/dependencies", app.dependencyStatus)

	// Browser sockets. Tokens arrive as ?access_token= since browsers cannot set headers here.
	router.GET("/ws", app.sockets.Anonymous)
	router.GET("/api/ws", app.auth, app.sockets.Authenticated)

	router.POST(app.cfg.BotWebhookPath(), app.telegram.Webhook)
	router.POST("/paystack/webhook", app.funds.Webhook)

	api := router.Group("/api", middleware.RateLimit(app.cfg.RateLimitPerMinute))
	{
		api.GET("/messages", app.messages.ListMessages)
		api.POST("/send", middleware.RequireAPIKey(app.cfg.PrimeAPIKey), app.messages.Send)
		api.GET("/funds/public-key", app.funds.PublicKey)

		authed := api.Group("", app.auth)
		{
			authed.POST("/users", app.users.CreateUser)
			authed.GET("/users/me", app.users.GetCurrentUser)
			authed.PUT("/users/me", app.users.UpdateCurrentUser)
			authed.POST("/auth/link-telegram", app.users.LinkTelegram)

			authed.POST("/number/buy", app.orders.BuyNumber)
			authed.GET("/number/sms/:orderId", app.orders.CheckSMS)
			authed.POST("/number/cancel/:orderId", app.orders.CancelOrder)
			authed.POST("/number/finish/:orderId", app.orders.FinishOrder)
			authed.GET("/number/orders", app.orders.ListOrders)
			authed.GET("/number/products/:country", app.orders.Products)

			authed.GET("/dashboard", app.accounts.Dashboard)
			authed.GET("/transactions", app.accounts.Transactions)
			authed.GET("/wallet", app.accounts.Wallet)

			authed.POST("/funds/add", app.funds.AddFunds)
			authed.POST("/funds/verify", app.funds.VerifyFunds)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Prime SMS Hub API is running",
	})
}

// dependencyStatus pings the database and, when configured, Redis.
// The vendor account is reported but does not fail the check.
func (app *application) dependencyStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{"database": "ok", "redis": "disabled"}
	healthy := true

	sqlDB, err := app.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		app.logger.Error("database ping failed", "error", err)
		status["database"] = "unreachable"
		healthy = false
	}

	if app.rdb != nil {
		status["redis"] = "ok"
		if err := app.rdb.Ping(ctx).Err(); err != nil {
			app.logger.Error("redis ping failed", "error", err)
			status["redis"] = "unreachable"
			healthy = false
		}
	}

	if profile, err := app.vendor.Profile(ctx); err != nil {
		app.logger.Warn("vendor profile unavailable", "error", err)
		status["vendor"] = gin.H{"status": "unreachable"}
	} else {
		status["vendor"] = gin.H{"status": "ok", "balance": profile.Balance}
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"success":      healthy,
		"dependencies": status,
		"connections":  app.registry.Len(),
	})
}
