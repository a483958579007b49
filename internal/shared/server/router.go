package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"screenplay-backend/internal/analyses"
	"screenplay-backend/internal/costs"
	"screenplay-backend/internal/progress"
	"screenplay-backend/internal/providers"
	"screenplay-backend/internal/providers/anthropic"
	"screenplay-backend/internal/providers/deepseek"
	"screenplay-backend/internal/providers/openai"
	"screenplay-backend/internal/providers/perplexity"
	"screenplay-backend/internal/providers/xai"
	"screenplay-backend/internal/shared/config"
	"screenplay-backend/internal/shared/metrics"
	"screenplay-backend/internal/shared/server/middleware"
	"screenplay-backend/internal/shared/server/respond"
	"screenplay-backend/internal/shared/storage/db"
	"screenplay-backend/internal/shared/storage/object"
	localstore "screenplay-backend/internal/shared/storage/object/local"
	s3store "screenplay-backend/internal/shared/storage/object/s3"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
		submitRateLimit(),
	)

	// Dependencies
	store := newObjectStore(cfg)
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, opts)
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var costsSvc *costs.Service
	if sqlDB != nil {
		costsSvc = costs.NewPostgresService(sqlDB, cfg.MonthlySpendCeilingUSD)
	} else {
		costsSvc = costs.NewService(cfg.MonthlySpendCeilingUSD)
	}

	var analysisRepo analyses.Repo
	if sqlDB != nil {
		analysisRepo = &analyses.PGRepo{DB: sqlDB}
	} else {
		analysisRepo = analyses.NewMemoryRepo()
	}

	analysisSvc := &analyses.Service{
		Repo:      analysisRepo,
		Store:     store,
		Progress:  newProgressStore(cfg),
		Costs:     costsSvc,
		Detector:  newDetector(cfg),
		Providers: buildAdapters(cfg),
		Models: map[string]string{
			"anthropic":  cfg.AnthropicModel,
			"xai":        cfg.XAIModel,
			"openai":     cfg.OpenAIModel,
			"deepseek":   cfg.DeepSeekModel,
			"perplexity": cfg.PerplexityModel,
			"detector":   cfg.DetectorModel,
		},
	}
	analysisHandler := analyses.NewHandler(analysisSvc, cfg.MaxUploadBytes)
	costsHandler := costs.NewHandler(costsSvc)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)
	analysisHandler.RegisterRoutes(api)
	costsHandler.RegisterRoutes(api)

	return r
}

// submitRateLimit throttles analysis submissions per user. Each submission
// fans out to every configured provider, so bursts are expensive.
func submitRateLimit() gin.HandlerFunc {
	return middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"SUBMIT": {Rate: 0.2, Burst: 3},
		},
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && strings.HasPrefix(c.FullPath(), "/api/v1/analyses") {
				return "SUBMIT"
			}
			return ""
		},
	})
}

func newObjectStore(cfg config.Config) object.ObjectStore {
	if cfg.ObjectStoreType == "s3" {
		store, err := s3store.New(context.Background(), cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			log.Printf("failed to init s3 store, falling back to local: %v", err)
		} else {
			return store
		}
	}
	return localstore.New(cfg.LocalStoreDir)
}

func newProgressStore(cfg config.Config) progress.Store {
	if cfg.ProgressStore == "redis" && cfg.RedisURL != "" {
		store, err := progress.NewRedisStore(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Printf("failed to connect redis, falling back to memory progress: %v", err)
		} else {
			return store
		}
	}
	return progress.NewMemoryStore()
}

func newDetector(cfg config.Config) analyses.SourceDetector {
	detector, err := openai.NewDetector(cfg.OpenAIAPIKey, cfg.DetectorModel)
	if err != nil {
		log.Printf("source detector disabled: %v", err)
		return nil
	}
	return detector
}

// buildAdapters constructs one adapter per configured provider. Providers
// without credentials are skipped; the merge tolerates their absence.
func buildAdapters(cfg config.Config) []providers.Adapter {
	var adapters []providers.Adapter
	add := func(adapter providers.Adapter, err error) {
		if err != nil {
			log.Printf("provider disabled: %v", err)
			return
		}
		adapters = append(adapters, adapter)
	}
	add(anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	add(xai.NewClient(cfg.XAIAPIKey, cfg.XAIModel))
	add(openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel))
	add(deepseek.NewClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel))
	add(perplexity.NewClient(cfg.PerplexityAPIKey, cfg.PerplexityModel))
	return adapters
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
