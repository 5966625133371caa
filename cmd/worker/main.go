// Worker runs the sequencer and mailbox poller without the HTTP API,
// for deployments that scale the API and the workers separately.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/salestroopz/outreach-engine/internal/classify"
	"github.com/salestroopz/outreach-engine/internal/config"
	"github.com/salestroopz/outreach-engine/internal/llm"
	"github.com/salestroopz/outreach-engine/internal/mailbox"
	"github.com/salestroopz/outreach-engine/internal/mailing"
	"github.com/salestroopz/outreach-engine/internal/pkg/secrets"
	"github.com/salestroopz/outreach-engine/internal/repository/postgres"
	"github.com/salestroopz/outreach-engine/internal/sequence"
	"github.com/salestroopz/outreach-engine/internal/worker"
)

func main() {
	log.Println("Starting outreach worker...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifeMins) * time.Minute)

	ctx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unavailable (%v), falling back to advisory locks", err)
			redisClient = nil
		}
	}

	if cfg.Encryption.Key == "" {
		log.Fatal("ENCRYPTION_KEY is required to read mail credentials")
	}
	box, err := secrets.NewBox(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize credential encryption: %v", err)
	}
	settingsRepo := postgres.NewSettingsRepo(db, box)

	llmClient, err := llm.New(cfg.LLM)
	if err != nil {
		log.Printf("LLM not configured (%v); crafted steps fall back to templates, replies go unclassified", err)
		llmClient = nil
	}

	var crafter *sequence.Crafter
	var classifier *classify.Classifier
	if llmClient != nil {
		crafter = sequence.NewCrafter(llmClient)
		classifier = classify.New(llmClient)
	}

	smtpSender := mailing.NewSMTPSender()
	var sesSender *mailing.SESSender
	if cfg.SES.Enabled {
		sesSender, err = mailing.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
		if err != nil {
			log.Printf("SES unavailable (%v); SES-configured orgs will fail sends", err)
		}
	}

	sequencer := worker.NewSequencer(db, redisClient, settingsRepo,
		mailing.NewTemplateService(), crafter, smtpSender, sesSender)
	sequencer.SetPollInterval(cfg.Sequencer.Interval())
	sequencer.SetBatchSize(cfg.Sequencer.BatchSize)
	sequencer.SetLockTTL(cfg.Sequencer.LockTTL())
	sequencer.Start()

	poller := worker.NewMailboxPoller(db, redisClient, settingsRepo,
		mailbox.NewDialer(), classifier)
	poller.SetPollInterval(cfg.Mailbox.Interval())
	poller.SetFetchLimit(cfg.Mailbox.FetchLimit)
	poller.SetLockTTL(cfg.Mailbox.LockTTL())
	poller.Start()

	log.Println("Workers running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down workers...")
	sequencer.Stop()
	poller.Stop()
	log.Println("Worker stopped")
}
