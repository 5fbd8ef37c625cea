package main

import (
	"context"
	"errors"
	"fmt"
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

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/middlewares"
	"bitbucket.org/redfibra/fieldops_backend/models"
	"bitbucket.org/redfibra/fieldops_backend/models/reports"
	"bitbucket.org/redfibra/fieldops_backend/utils"
	"bitbucket.org/redfibra/fieldops_backend/workflow"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
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

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	logger := config.GetLogger()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Role", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
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

	r.Use(middlewares.CorrelationMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api", middlewares.AuthMiddleware())
	api.POST("/stock-maintenance/run", stockMaintenanceHandler(logger))
	api.POST("/stock-maintenance/sync-locations", syncLocationsHandler(logger))
	api.GET("/crews", listCrewsHandler())
	api.GET("/crews/:id/assigned", crewAssignedHandler())
	api.GET("/crews/:id/assigned/export", crewAssignedExportHandler())
	api.GET("/equipment", searchEquipmentHandler())
	api.POST("/equipment/import", importEquipmentHandler(logger))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// Start listening immediately (Cloud Run startup probe is TCP based).
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

	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.DisconnectDatabase(shutdownCtx)
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// newStore resolves the request-scoped store. Handlers sit behind the
// readiness gate, so a nil DB here means the gate was bypassed.
func newStore() (*models.Store, error) {
	db := config.GetDB()
	if db == nil {
		return nil, config.ErrDBNotInitialized
	}
	return models.NewStore(db), nil
}

type maintenanceRequestBody struct {
	Scope struct {
		CrewID     string `json:"crewId"`
		ActiveOnly bool   `json:"activeOnly"`
	} `json:"scope"`
	Operations []string `json:"operations" binding:"omitempty,dive,oneof=migrate reconcile"`
	DryRun     bool     `json:"dryRun"`
	ZeroStale  bool     `json:"zeroStale"`
}

// buildMaintenanceRequest maps the HTTP body onto a workflow request. The
// env flag can force stale-counter zeroing on even when the caller left it
// off.
func buildMaintenanceRequest(body maintenanceRequestBody) workflow.MaintenanceRequest {
	ops := make([]workflow.Operation, 0, len(body.Operations))
	for _, op := range body.Operations {
		ops = append(ops, workflow.Operation(op))
	}
	return workflow.MaintenanceRequest{
		Scope:      workflow.Scope{CrewID: strings.TrimSpace(body.Scope.CrewID), ActiveOnly: body.Scope.ActiveOnly},
		Operations: ops,
		DryRun:     body.DryRun,
		ZeroStale:  body.ZeroStale || config.ZeroStaleCounters(),
	}
}

func stockMaintenanceHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body maintenanceRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		store, err := newStore()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		report, err := workflow.RunStockMaintenance(c.Request.Context(), store, logger, buildMaintenanceRequest(body))
		if err != nil {
			if errors.Is(err, models.ErrCrewNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func syncLocationsHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			DryRun bool `json:"dryRun"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		store, err := newStore()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		runLog := &workflow.RunLog{}
		res, err := workflow.SyncEquipmentLocations(c.Request.Context(), store, logger, runLog, body.DryRun)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": res, "log": runLog.Lines()})
	}
}

func listCrewsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "1" || strings.EqualFold(c.Query("active"), "true")
		store, err := newStore()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		crews, err := store.ListCrews(c.Request.Context(), activeOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, crews)
	}
}

// assignedLedger is what the crew-assigned read handlers need from the store.
type assignedLedger interface {
	GetCrew(ctx context.Context, id string) (*models.Crew, error)
	CrewAssigned(ctx context.Context, crewID string) ([]models.AssignedEquipment, error)
}

func crewAssignedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := newStore()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		crewID := c.Param("id")
		if _, err := store.GetCrew(c.Request.Context(), crewID); err != nil {
			if errors.Is(err, models.ErrCrewNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		entries, err := store.CrewAssigned(c.Request.Context(), crewID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func crewAssignedExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := newStore()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		exportCrewAssigned(c, store, c.Param("id"))
	}
}

func exportCrewAssigned(c *gin.Context, store assignedLedger, crewID string) {
	if _, err := store.GetCrew(c.Request.Context(), crewID); err != nil {
		if errors.Is(err, models.ErrCrewNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	entries, err := store.CrewAssigned(c.Request.Context(), crewID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	f, err := reports.ExportAssignedStock(crewID, entries)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	filename := fmt.Sprintf("assigned_%s_%s.xlsx", crewID, time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		config.LogError(config.GetLogger(), "server.go", "exportCrewAssigned", "writing xlsx", crewID, err)
	}
}

func searchEquipmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := newStore()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		records, err := store.SearchEquipment(c.Request.Context(), strings.TrimSpace(c.Query("serial")), config.SearchLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func importEquipmentHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
			return
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type: only .xlsx files are allowed"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		store, err := newStore()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		summary, err := store.ImportEquipmentFromXlsx(c.Request.Context(), file)
		if err != nil {
			config.LogError(logger, "server.go", "importEquipmentHandler", "importing equipment", fileHeader.Filename, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "summary": summary})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			fields := logrus.Fields{}
			if id, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); ok {
				fields["correlationId"] = id
			}
			if role, ok := utils.GetRoleFromContext(c.Request.Context()); ok {
				fields["role"] = role
			}
			logger.WithFields(fields).Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
