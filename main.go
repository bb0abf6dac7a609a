package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clan-progression-service/cache"
	"clan-progression-service/handlers"
	"clan-progression-service/middleware"
	"clan-progression-service/models"
	"clan-progression-service/repository"
	"clan-progression-service/services"
	"clan-progression-service/utils"
	"clan-progression-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB, proof images only
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware(logger))

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Member{},
		&models.Rank{},
		&models.Submission{},
		&models.ProgressionEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Proof images go to R2 when configured, local disk otherwise.
	if os.Getenv("CLOUDFLARE_ACCOUNT_ID") != "" {
		if err := utils.InitProofStore(); err != nil {
			log.Fatal("failed to initialize R2 proof store:", err)
		}
	} else {
		log.Println("⚠️  CLOUDFLARE_ACCOUNT_ID not set, storing proofs on local disk")
		if err := utils.EnsureProofDir(); err != nil {
			log.Fatal("failed to ensure proofs dir:", err)
		}
	}

	startupCtx := context.Background()

	ladder, err := services.LoadRankConfig(os.Getenv("RANKS_CONFIG"))
	if err != nil {
		log.Fatal("failed to load rank config:", err)
	}
	repo := repository.NewRepository(db)
	if err := repo.SeedRanks(startupCtx, ladder); err != nil {
		log.Fatal("failed to seed ranks:", err)
	}
	ranks, err := repo.Ranks(startupCtx)
	if err != nil {
		log.Fatal("failed to load ranks:", err)
	}
	table := services.NewRankTable(ranks)

	groupAPIURL := os.Getenv("GROUP_API_URL")
	if groupAPIURL == "" {
		log.Fatal("GROUP_API_URL environment variable not set")
	}
	groupID := os.Getenv("GROUP_ID")
	if groupID == "" {
		log.Fatal("GROUP_ID environment variable not set")
	}
	groupToken := os.Getenv("GROUP_API_TOKEN")
	if groupToken == "" {
		log.Fatal("GROUP_API_TOKEN environment variable not set")
	}
	group := services.NewGroupClient(groupAPIURL, groupID, groupToken, logger)

	grantAPIURL := os.Getenv("GRANT_API_URL")
	if grantAPIURL == "" {
		log.Fatal("GRANT_API_URL environment variable not set")
	}
	grants := services.NewGrantClient(grantAPIURL, os.Getenv("GRANT_API_TOKEN"), logger)

	// Startup probe; a dead platform degrades sync, it does not block serving.
	probeCtx, cancelProbe := context.WithTimeout(startupCtx, 10*time.Second)
	if err := group.VerifyCredentials(probeCtx); err != nil {
		logger.Error("❌ group platform credential check failed", "error", err)
	}
	cancelProbe()

	retryer := services.NewRetryer(
		envInt("MAX_RATE_LIMIT_RETRIES", 3),
		envDuration("RATE_LIMIT_RETRY_DELAY", time.Second),
		logger,
	)
	syncer := services.NewSyncService(repo, group, grants, table, retryer,
		envDuration("SYNC_THROTTLE", 500*time.Millisecond), logger)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	board := cache.NewLeaderboard(redisAddr, repo, logger)
	pingCtx, cancelPing := context.WithTimeout(startupCtx, 5*time.Second)
	if err := board.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, leaderboard reads fall back to the ledger", "addr", redisAddr, "error", err)
	} else {
		rebuildCtx, cancelRebuild := context.WithTimeout(startupCtx, time.Minute)
		if err := board.Rebuild(rebuildCtx); err != nil {
			logger.Warn("initial leaderboard rebuild failed", "error", err)
		}
		cancelRebuild()
	}
	cancelPing()

	sched, err := services.StartLeaderboardScheduler(board,
		envDuration("LEADERBOARD_REBUILD_INTERVAL", 15*time.Minute), logger)
	if err != nil {
		log.Fatal("failed to start leaderboard scheduler:", err)
	}

	elig := services.NewEligibility(table)
	feed := services.NewEventFeedService(db, logger)
	promoter := services.NewPromotionService(repo, group, grants, table, elig, syncer, retryer, feed, logger)
	memberService := services.NewMemberService(repo, table, elig, promoter, board, logger)
	submissionService := services.NewSubmissionService(repo, promoter, board, feed, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rankSyncWorker := workers.NewRankSyncWorker(syncer, envDuration("SYNC_INTERVAL", time.Hour), logger)
	rankSyncWorker.Start(ctx)
	ladderAuditWorker := workers.NewLadderAuditWorker(group, table, envDuration("LADDER_AUDIT_INTERVAL", 6*time.Hour), logger)
	ladderAuditWorker.Start(ctx)

	// ✅ Setup routes — gateway auth enforced globally above
	handlers.SetupMemberRoutes(app, memberService, syncer, board, feed, logger)
	handlers.SetupAdminRoutes(app, memberService, syncer, promoter, table, board, logger)
	handlers.SetupSubmissionRoutes(app, submissionService, logger)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Rank sync worker running")
	log.Println("✅ Ladder audit worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := sched.Shutdown(); err != nil {
		log.Printf("scheduler shutdown error: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

func envDuration(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using %s", name, raw, def)
		return def
	}
	return d
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using %d", name, raw, def)
		return def
	}
	return n
}
