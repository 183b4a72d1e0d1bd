package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"birdwatch/internal/config"
	"birdwatch/internal/dedup"
	"birdwatch/internal/jobs"
	"birdwatch/internal/llm"
	"birdwatch/internal/logging"
	"birdwatch/internal/scoring"
	"birdwatch/internal/store"
	"birdwatch/internal/twitter"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting birdwatch agent...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s)", cfg.Port, cfg.DatabasePath)

	// Persistence
	var db *store.DB
	if cfg.DatabasePath != "" {
		var err error
		db, err = store.OpenDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("❌ Failed to open database: %v", err)
		}
		defer db.Close()
		log.Println("✅ Database ready")
	} else {
		log.Println("⚠️  DATABASE_PATH empty, running memory-only")
	}

	// Engagement store, reloaded from disk so a restart does not re-process
	// or re-reply to anything already handled.
	st := store.New(cfg.MinInsightScore, db)
	seen, err := st.Reload()
	if err != nil {
		log.Fatalf("❌ Failed to reload store: %v", err)
	}

	tracker := dedup.NewTracker(cfg.DedupCapacity)
	for _, id := range seen {
		tracker.Admit(id)
	}
	if len(seen) > 0 {
		log.Printf("✅ Re-seeded dedup tracker with %d known items", len(seen))
	}

	// Keyword list for the keyword-mention sub-score, hot-reloaded on change
	keywords := scoring.NewKeywordList()
	if cfg.KeywordsFile != "" {
		if err := keywords.LoadFile(cfg.KeywordsFile); err != nil {
			log.Fatalf("❌ Failed to load keywords file: %v", err)
		}
		if err := keywords.Watch(); err != nil {
			log.Printf("⚠️  Keyword hot-reload unavailable: %v", err)
		}
		defer keywords.Close()
	}

	// Prompt templates
	var prompts *llm.Prompts
	if cfg.PromptsFile != "" {
		prompts, err = llm.LoadPrompts(cfg.PromptsFile)
		if err != nil {
			log.Fatalf("❌ Failed to load prompts file: %v", err)
		}
		log.Printf("✅ Prompts loaded from %s", cfg.PromptsFile)
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("❌ OPENAI_API_KEY environment variable is required")
	}
	client := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, prompts)
	scorer := scoring.NewScorer(client, keywords)

	// Browser session: content source and action executor in one
	if cfg.TwitterEmail == "" || cfg.TwitterPassword == "" {
		log.Fatal("❌ TWITTER_EMAIL and TWITTER_PASSWORD environment variables are required")
	}
	browser := twitter.NewBrowser(twitter.Credentials{
		Email:    cfg.TwitterEmail,
		Password: cfg.TwitterPassword,
		Account:  cfg.TwitterAccount,
	}, cfg.Headless)

	startCtx, startCancel := context.WithTimeout(context.Background(), 3*time.Minute)
	if err := browser.Start(startCtx); err != nil {
		startCancel()
		log.Fatalf("❌ Failed to start browser: %v", err)
	}
	defer browser.Close()
	if err := browser.Login(startCtx); err != nil {
		startCancel()
		log.Fatalf("❌ Twitter login failed: %v", err)
	}
	startCancel()

	// Cycles
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create scheduler: %v", err)
	}
	mustRegister := func(err error) {
		if err != nil {
			log.Fatalf("❌ Failed to register cycle: %v", err)
		}
	}
	mustRegister(scheduler.Register(
		jobs.NewScanCycle(browser, scorer, client, tracker, st, cfg.MaxTweetsScan),
		cfg.ScanInterval))
	mustRegister(scheduler.Register(
		jobs.NewReplyCycle(st, client, browser, cfg.MaxRepliesPerCycle),
		cfg.ReplyInterval))

	summarize := jobs.NewSummarizeCycle(st, client, browser, cfg.SummaryInterval)
	if cfg.SummaryCron != "" {
		mustRegister(scheduler.RegisterCron(summarize, cfg.SummaryCron))
	} else {
		mustRegister(scheduler.Register(summarize, cfg.SummaryInterval))
	}

	mustRegister(scheduler.Register(
		jobs.NewRefreshCycle(st, browser),
		cfg.RefreshInterval))

	// Daily at 2 AM UTC
	if cfg.RetentionDays > 0 {
		mustRegister(scheduler.RegisterCron(
			jobs.NewRetentionCycle(st, cfg.RetentionDays), "0 2 * * *"))
	}

	scheduler.Start()
	log.Printf("🕐 Cycles: scan (%v), reply (%v), summarize (%v), refresh (%v)",
		cfg.ScanInterval, cfg.ReplyInterval, cfg.SummaryInterval, cfg.RefreshInterval)

	// Status/metrics server
	app := fiber.New(fiber.Config{
		AppName:      "birdwatch v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("birdwatch")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Get("/health", func(c *fiber.Ctx) error {
		if scheduler.Halted() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "halted",
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"cycles": scheduler.Status(),
			"items":  st.Stats(),
			"dedup":  tracker.Size(),
		})
	})

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down agent...")

		if err := scheduler.Stop(); err != nil {
			log.Printf("⚠️  Error stopping scheduler: %v", err)
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
