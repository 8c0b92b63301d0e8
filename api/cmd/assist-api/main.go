package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"assist-bot/api/internal/config"
	"assist-bot/api/internal/evidence"
	"assist-bot/api/internal/evidence/gemini"
	"assist-bot/api/internal/evidence/gpt"
	"assist-bot/api/internal/forms"
	"assist-bot/api/internal/handle"
	"assist-bot/api/internal/httpserver"
	"assist-bot/api/internal/service"
	"assist-bot/api/internal/store"
	"assist-bot/api/internal/telegram"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Postgres ---
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	log.Printf("db connected: %s", config.SafeDSNSummary(cfg.DatabaseURL))

	if err := store.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	tables, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	// --- Vision ---
	engines := &evidence.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		OpenAI: gpt.New(cfg.OpenAIAPIKey, cfg.OpenAIModel),
	}
	vision, err := engines.GetEngine(cfg.VisionEngine)
	if err != nil {
		log.Fatalf("vision: %v", err)
	}
	if m, ok := vision.(interface{ GetModel() string }); ok {
		log.Printf("vision model: %s", m.GetModel())
	}
	visionCache := store.NewVisionCacheRepo(db)
	if vision.Available() {
		vision = &service.CachedVision{
			VisionChecker: evidence.NewLimitedVision(vision, cfg.VisionRPS, 1),
			Cache:         visionCache,
			MaxAge:        cfg.VisionCacheTTL,
		}
		go purgeVisionCache(ctx, visionCache, cfg.VisionCacheTTL)
	}
	log.Printf("vision engine: %s (available=%v)", vision.Name(), vision.Available())

	// --- Telegram (опционально) ---
	var notifier evidence.Notifier
	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		bot.Debug = false
		notifier = telegram.NewNotifier(bot, cfg.TelegramAdminChatID, cfg.AdminURL)
		log.Printf("escalations go to telegram chat %d", cfg.TelegramAdminChatID)
	}

	orch := evidence.NewOrchestrator(tables, evidence.NewScorer(tables, vision), forms.NewAnalyzer(nil), notifier)
	svc := service.NewReview(orch,
		store.NewRequestRepo(db),
		store.NewEvidenceRepo(db),
		store.NewFormRepo(db),
		store.NewReviewLogRepo(db),
		store.NewBookingRepo(db),
	)
	h := handle.New(svc, tables, db, cfg.ReviewTimeout)

	if err := httpserver.Run(ctx, "0.0.0.0:"+cfg.Port, h.Routes(), 15*time.Second); err != nil {
		log.Fatalf("http: %v", err)
	}
}

func purgeVisionCache(ctx context.Context, repo *store.VisionCacheRepo, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeOlderThan(ctx, ttl)
			if err != nil {
				log.Printf("vision cache purge: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("vision cache purge: %d rows", n)
			}
		}
	}
}
