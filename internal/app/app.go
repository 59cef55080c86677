package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sop-portal/portal-backend/internal/auth"
	"sop-portal/portal-backend/internal/config"
	"sop-portal/portal-backend/internal/documents"
	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/internal/middleware"
	"sop-portal/portal-backend/internal/notifications"
	"sop-portal/portal-backend/internal/notifications/websocket"
	"sop-portal/portal-backend/pkg/storage"
)

// App holds the wired services shared by the API server and the workers.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *sqlx.DB
	Gorm          *gorm.DB
	WebSocket     *websocket.Manager
	Notifications *notifications.Service
	Documents     documents.Service
	Auth          *auth.Service
}

// NewLogger builds a zap logger for cfg.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

// New connects the databases and AWS clients and wires every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to connect to database").
			Mark(ierr.ErrDatabase)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime.Std())

	if err := documents.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	// notifications share the pool through gorm
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		db.Close()
		return nil, ierr.WithError(err).
			WithMessage("failed to open gorm session").
			Mark(ierr.ErrDatabase)
	}

	awsOpts := storage.AWSOptions{
		Region:          cfg.AWS.Region,
		Endpoint:        cfg.AWS.Endpoint,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		UsePathStyle:    cfg.AWS.UsePathStyle,
	}
	awsCfg, err := storage.LoadAWSConfig(ctx, awsOpts)
	if err != nil {
		db.Close()
		return nil, err
	}

	wsManager := websocket.NewManager(logger.Named("websocket"), cfg.Server.AllowedOrigins)
	notificationService, err := notifications.NewService(gormDB, wsManager, logger.Named("notifications"),
		channels(cfg, awsCfg)...)
	if err != nil {
		db.Close()
		return nil, err
	}

	documentService := documents.NewService(
		documents.NewRepository(db),
		notificationService,
		documents.NewStorageProvider(storage.NewS3Client(awsCfg, awsOpts), cfg.AWS.DocumentBucket),
		logger.Named("documents"),
	)

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL.Std()).
		WithIssueKeyHash(cfg.Auth.IssueKeyHash)

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		Gorm:          gormDB,
		WebSocket:     wsManager,
		Notifications: notificationService,
		Documents:     documentService,
		Auth:          authService,
	}, nil
}

func channels(cfg *config.Config, awsCfg aws.Config) []notifications.Channel {
	var out []notifications.Channel
	endpoint := func(base **string) {
		if cfg.AWS.Endpoint != "" {
			*base = aws.String(cfg.AWS.Endpoint)
		}
	}
	if cfg.Notifications.EmailEnabled {
		client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) { endpoint(&o.BaseEndpoint) })
		out = append(out, notifications.NewEmailChannel(client, cfg.AWS.SESFromAddress))
	}
	if cfg.Notifications.TopicEnabled {
		client := sns.NewFromConfig(awsCfg, func(o *sns.Options) { endpoint(&o.BaseEndpoint) })
		out = append(out, notifications.NewTopicChannel(client, cfg.AWS.SNSTopicARN))
	}
	return out
}

// Router builds the HTTP API.
func (a *App) Router() *gin.Engine {
	mode := strings.ToLower(a.Config.Server.Mode)
	if mode == gin.DebugMode || mode == gin.ReleaseMode || mode == gin.TestMode {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID,
		middleware.Logger(a.Logger.Named("http")),
		middleware.CORS(a.Config.Server.AllowedOrigins),
		ierr.ErrorHandler(),
	)

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := a.DB.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}
		c.JSON(status, gin.H{
			"status":      http.StatusText(status),
			"database":    dbStatus,
			"connections": a.WebSocket.GetConnectionCount(),
			"timestamp":   time.Now(),
		})
	})

	api := router.Group("/api/v1")
	authenticated := api.Group("", auth.Middleware(a.Auth, a.Config.Auth.Enabled))

	auth.RegisterRoutes(api, authenticated, auth.NewHandler(a.Auth), a.Config.Auth.AllowTokenIssue)
	documents.NewHandler(a.Documents).RegisterRoutes(authenticated)
	notifications.NewHandler(a.Notifications, a.WebSocket, a.Logger.Named("notifications")).RegisterRoutes(authenticated)

	return router
}

// Close releases the websocket connections and the database pool.
func (a *App) Close() {
	if err := a.Notifications.Close(); err != nil {
		a.Logger.Warn("failed to close notifications", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("failed to close database", zap.Error(err))
	}
}
