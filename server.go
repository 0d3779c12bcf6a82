package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/middlewares"
	"github.com/thukatech/restock_backend/models"
	"github.com/thukatech/restock_backend/utils"
)

const defaultPort = "8080"

// RateLimiter throttles per client IP using a redis counter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "RateLimit:" + c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if exists == 0 {
		if err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count > rl.limit {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	c.Next()
}

// customErrorLogger logs handler errors only.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func registerRoutes(r *gin.Engine) {
	r.POST("/login", loginHandler())

	if utils.GetStorageProvider() == utils.StorageProviderLocal {
		r.Static("/uploads", utils.LocalUploadDir())
	}

	api := r.Group("/api", middlewares.RequireAuth())
	{
		api.POST("/uploads/photo", uploadPhotoHandler())
		api.POST("/uploads/proof", uploadProofHandler())

		api.POST("/logs", createOrderHandler())
		api.GET("/logs", listLogsHandler())
		api.GET("/logs/pickup", listPickupLogsHandler())
		api.GET("/logs/duplicates", duplicateGroupsHandler())
		api.POST("/logs/merge", mergeLogsHandler())
		api.GET("/logs/unbilled", unbilledLogsHandler())
		api.GET("/logs/:id", getLogHandler())
		api.PUT("/logs/:id", adjustLogHandler())
		api.POST("/logs/:id/pickup", pickupHandler())
		api.POST("/logs/:id/receive", receiveHandler())
		api.POST("/logs/:id/discrepancy", flagDiscrepancyHandler())
		api.GET("/logs/:id/history", logHistoryHandler())
		api.POST("/logs/:id/billing", upsertBillingHandler())
		api.GET("/logs/:id/billing", getBillingHandler())

		api.PUT("/billing/:id/gst", setGSTHandler())
		api.POST("/billing/:id/proofs", attachBillingProofHandler())
		api.DELETE("/billing/:id", deleteBillingHandler())

		api.POST("/suppliers", createSupplierHandler())
		api.GET("/suppliers", listSuppliersHandler())
		api.GET("/suppliers/:id", getSupplierHandler())
		api.PUT("/suppliers/:id", updateSupplierHandler())
		api.DELETE("/suppliers/:id", deleteSupplierHandler())

		api.GET("/products", listProductsHandler())
		api.GET("/products/:id", getProductHandler())
		api.PUT("/products/:id", updateProductDescriptionHandler())

		api.POST("/purchase-orders", createPurchaseOrderHandler())
		api.GET("/purchase-orders", listPurchaseOrdersHandler())
		api.GET("/purchase-orders/:id", getPurchaseOrderHandler())
		api.PUT("/purchase-orders/:id/status", updatePurchaseOrderStatusHandler())

		api.GET("/summaries/suppliers", supplierSummariesHandler())
		api.GET("/summaries/dates", dateSummariesHandler())
		api.GET("/reports/daily-logs", exportReportHandler())

		api.GET("/storefront/orders", lookupStorefrontOrderHandler())
	}

	admin := api.Group("", middlewares.RequireAdmin())
	{
		admin.DELETE("/logs/:id", deleteLogHandler())

		admin.POST("/users", createUserHandler())
		admin.GET("/users", listUsersHandler())
		admin.PUT("/users/:id/enabled", setUserEnabledHandler())
		admin.PUT("/users/:id/password", changePasswordHandler())

		admin.POST("/storefront/configs", createStorefrontConfigHandler())
		admin.GET("/storefront/configs", listStorefrontConfigsHandler())
		admin.PUT("/storefront/configs/:id", updateStorefrontConfigHandler())
		admin.DELETE("/storefront/configs/:id", deleteStorefrontConfigHandler())

		admin.POST("/ops/outbox/replay", outboxReplayHandler())
		admin.GET("/reports/snapshot", exportSnapshotHandler())
	}
}

// runSyncOutboxDispatcher drains the sync outbox on an interval until the
// context is cancelled.
func runSyncOutboxDispatcher(ctx context.Context, logger *logrus.Logger) {
	interval := 10 * time.Second
	if v := strings.TrimSpace(os.Getenv("SYNC_OUTBOX_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := models.DispatchPendingSyncMessages(ctx, logger); err != nil {
				logger.WithFields(logrus.Fields{
					"field": "syncOutbox",
				}).Warn("outbox dispatch failed: " + err.Error())
			}
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if config.SyncOutboxEnabled() {
		go runSyncOutboxDispatcher(dispatcherCtx, logger)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work during drain.
	cancelDispatcher()

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
