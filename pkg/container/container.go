package container

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"payment-reconciler/internal/config"
	orderRepo "payment-reconciler/internal/domains/order/repository"
	"payment-reconciler/internal/domains/payment/gateway"
	"payment-reconciler/internal/domains/payment/gateway/phonepe"
	"payment-reconciler/internal/domains/payment/gateway/razorpay"
	paymentHandler "payment-reconciler/internal/domains/payment/handler"
	paymentJob "payment-reconciler/internal/domains/payment/job"
	"payment-reconciler/internal/domains/payment/replay"
	paymentRepo "payment-reconciler/internal/domains/payment/repository"
	paymentService "payment-reconciler/internal/domains/payment/service"
	"payment-reconciler/internal/domains/payment/signature"
	infraCache "payment-reconciler/internal/infrastructure/cache"
	"payment-reconciler/internal/infrastructure/database"
	"payment-reconciler/internal/infrastructure/email"
	"payment-reconciler/internal/infrastructure/storage"
	"payment-reconciler/internal/shared/middleware"
	"payment-reconciler/internal/shared/utils"
	"payment-reconciler/pkg/cache"
	"payment-reconciler/pkg/jwt"
)

// fallbackReplayEntries bounds the in-process replay store used when Redis is down.
const fallbackReplayEntries = 100_000

// ========================================
// CONTAINER STRUCT
// ========================================

// Container chứa TẤT CẢ dependencies của application
// Pattern: Service Locator + Dependency Injection
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient // nil when Redis was unreachable at boot
	ReplayStore cache.Store
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client
	Archive     *storage.MinIOStorage // nil unless MINIO_ENABLED
	Email       email.EmailService

	// ========================================
	// REPOSITORY LAYER
	// ========================================
	OrderRepo   orderRepo.OrderRepository
	WebhookRepo paymentRepo.WebhookRepository

	// ========================================
	// PAYMENT COMPONENTS
	// ========================================
	Gateway      gateway.PaymentGateway
	CardVerifier gateway.CardVerifier // nil without Razorpay credentials
	Signature    *signature.Verifier
	Guard        *replay.Guard
	Origins      *utils.IPAllowList
	Notifier     *paymentJob.AsynqNotifier

	// ========================================
	// SERVICE + HANDLER LAYER
	// ========================================
	ReconcileService paymentService.ReconcileService
	PaymentHandler   *paymentHandler.PaymentHandler
	RateLimiter      *middleware.IPRateLimiter
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer loads config and wires every dependency.
// Postgres is mandatory, Redis and MinIO degrade with a warning.
func NewContainer() (*Container, error) {
	log.Info().Msg("🔧 Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Info().Str("environment", cfg.App.Environment).Msg("✅ Config loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ========================================
	// STEP 2: INFRASTRUCTURE
	// ========================================
	if err := c.initInfrastructure(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}

	// ========================================
	// STEP 3: REPOSITORIES
	// ========================================
	c.initRepositories()
	log.Info().Msg("✅ Repositories initialized")

	// ========================================
	// STEP 4: SERVICES
	// ========================================
	if err := c.initServices(); err != nil {
		c.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	log.Info().Msg("✅ Services initialized")

	// ========================================
	// STEP 5: HANDLERS
	// ========================================
	c.initHandlers()
	log.Info().Msg("🎉 DI Container initialized successfully")

	return c, nil
}

func (c *Container) initInfrastructure(ctx context.Context) error {
	cfg := c.Config

	// PostgreSQL
	db := database.NewPostgresDB(cfg.Database.PoolConfig())
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db
	log.Info().Msg("✅ Database connected")

	// Redis backs the replay store; without it dedup is per-instance only
	redisClient := infraCache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️  Redis connection failed, replay protection falls back to in-memory store")
		_ = redisClient.Close()
		c.ReplayStore = cache.NewMemoryStore(fallbackReplayEntries)
	} else {
		c.Redis = redisClient
		c.ReplayStore = redisClient
	}

	c.AsynqClient = asynq.NewClient(c.RedisClientOpt())
	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)
	c.Email = email.NewSMTPEmailService(cfg.SMTP)

	// MinIO raw webhook archive (optional)
	if cfg.MinIO.Enabled {
		archive, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️  MinIO unavailable, webhook bodies stay in Postgres only")
		} else {
			c.Archive = archive
			log.Info().Str("bucket", cfg.MinIO.Bucket).Msg("✅ MinIO archive ready")
		}
	}

	return nil
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool
	c.OrderRepo = orderRepo.NewPostgresOrderRepository(pool)
	c.WebhookRepo = paymentRepo.NewWebhookRepository(pool)
}

func (c *Container) initServices() error {
	cfg := c.Config

	verifier, err := signature.NewVerifier(signature.Config{
		Secret:        cfg.Webhook.Secret,
		DevBypass:     cfg.Webhook.SkipVerification,
		NonProduction: cfg.App.NonProduction && !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("signature verifier: %w", err)
	}
	c.Signature = verifier
	if cfg.Webhook.Secret == "" && !cfg.Webhook.SkipVerification {
		log.Warn().Msg("⚠️  WEBHOOK_SECRET is empty, webhooks are processed unverified")
	}

	origins, err := utils.NewIPAllowList(cfg.Webhook.AllowedCIDRs)
	if err != nil {
		return fmt.Errorf("webhook allow list: %w", err)
	}
	c.Origins = origins

	c.Guard = replay.NewGuard(c.ReplayStore, replay.Config{
		Retention: cfg.Replay.Retention,
		MaxSkew:   cfg.Replay.MaxSkew,
	})

	c.Gateway = phonepe.NewClient(phonepe.Config{
		ClientID:      cfg.PhonePe.ClientID,
		ClientSecret:  cfg.PhonePe.ClientSecret,
		ClientVersion: cfg.PhonePe.ClientVersion,
		AuthURL:       cfg.PhonePe.AuthURL,
		APIURL:        cfg.PhonePe.APIURL,
		RedirectURL:   cfg.PhonePe.RedirectURL,
		ExpireAfter:   cfg.PhonePe.ExpireAfter,
		Timeout:       cfg.PhonePe.Timeout,
	})

	if cfg.Razorpay.KeySecret != "" {
		c.CardVerifier = razorpay.NewVerifier(razorpay.Config{
			KeyID:         cfg.Razorpay.KeyID,
			KeySecret:     cfg.Razorpay.KeySecret,
			ConfirmAmount: cfg.Razorpay.ConfirmAmount,
		})
	}

	c.Notifier = paymentJob.NewAsynqNotifier(c.AsynqClient, cfg.Jobs.NotifyMaxRetry)

	deps := paymentService.Dependencies{
		Orders:       c.OrderRepo,
		Webhooks:     c.WebhookRepo,
		Gateway:      c.Gateway,
		CardVerifier: c.CardVerifier,
		Verifier:     c.Signature,
		Guard:        c.Guard,
		Notifier:     c.Notifier,
		Origins:      c.Origins,
		Redirect: paymentService.RedirectTargets{
			SuccessURL: cfg.Redirect.SuccessURL,
			PendingURL: cfg.Redirect.PendingURL,
			FailureURL: cfg.Redirect.FailureURL,
		},
		TrustEmbeddedOnUpstreamFailure: cfg.Webhook.TrustEmbeddedOnUpstreamFailure,
	}
	// interface stays nil unless the archive is really there
	if c.Archive != nil {
		deps.Archiver = c.Archive
	}
	c.ReconcileService = paymentService.NewReconcileService(deps)

	return nil
}

func (c *Container) initHandlers() {
	c.PaymentHandler = paymentHandler.NewPaymentHandler(c.ReconcileService)
	c.RateLimiter = middleware.NewIPRateLimiter(rate.Limit(c.Config.RateLimit.RequestsPerSecond), c.Config.RateLimit.Burst)
}

// RedisClientOpt is shared by the asynq client, server and scheduler.
func (c *Container) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

// ========================================
// CLEANUP
// ========================================

// Cleanup đóng tất cả connections. Safe on a partially built container.
func (c *Container) Cleanup() {
	log.Info().Msg("🧹 Cleaning up container resources...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️  Failed to close asynq client")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️  Failed to close Redis")
		}
	}

	if c.DB != nil {
		c.DB.Close()
	}

	log.Info().Msg("✅ Container cleanup completed")
}
