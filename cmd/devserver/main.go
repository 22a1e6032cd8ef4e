package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/config"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/devserver"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/moderation"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage/memdb"
	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage/mongo"
)

func main() {
	var (
		configPath     string
		httpAddr       string
		logLevel       string
		kafkaAddr      string
		kafkaTopic     string
		kafkaBatch     int
		moderationPath string
		inMemory       bool
	)

	flag.StringVar(&configPath, "config", "cmd/devserver/config.toml", "Path to TOML config file")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&kafkaAddr, "kafka", "", "Kafka server address in the form 'host:port'.")
	flag.StringVar(&kafkaTopic, "topic", "", "Kafka topic.")
	flag.IntVar(&kafkaBatch, "batch", 0, "Kafka batch size.")
	flag.StringVar(&moderationPath, "moderation", "", "Path to JSON banned word list.")
	flag.BoolVar(&inMemory, "dev", false, "Keep articles and comments in memory instead of MongoDB.")
	flag.Parse()

	cfg := config.DefaultServer()
	if err := config.Load(configPath, &cfg, false); err != nil {
		log.Fatalf("[server] %v", err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if kafkaAddr != "" {
		cfg.KafkaAddr = kafkaAddr
	}
	if kafkaTopic != "" {
		cfg.KafkaTopic = kafkaTopic
	}
	if kafkaBatch != 0 {
		cfg.KafkaBatch = kafkaBatch
	}
	if moderationPath != "" {
		cfg.ModerationPath = moderationPath
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] %v", err)
	}
	config.SetLogLevel(cfg.LogLevel)
	log.Debugf("[server] config: %v", cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, closeDB, err := openStorage(ctx, cfg, inMemory)
	cancel()
	if err != nil {
		log.Fatalf("[server] failed to initialize storage instance: %v", err)
	}

	if cfg.SeedArticle != "" {
		article, err := db.AddArticle(context.Background(), models.ArticleDetail{Article: models.Article{Title: cfg.SeedArticle}})
		if err != nil {
			log.Fatalf("[server] failed to seed article: %v", err)
		}
		log.Infof("[server] seeded article %q with id %s", article.Title, article.ID)
	}

	apiConf := devserver.Config{
		ServiceName: cfg.ServiceName,
		APIKey:      cfg.APIKey,
		Username:    cfg.Username,
		Password:    cfg.Password,
		TokenTTL:    cfg.TokenTTL.Duration,
	}
	if cfg.ModerationPath != "" {
		filter := moderation.New()
		if err := filter.LoadFromJSON(cfg.ModerationPath); err != nil {
			log.Fatalf("[server] failed to load moderation list %s: %v", cfg.ModerationPath, err)
		}
		apiConf.Moderator = filter
		log.Infof("[server] moderation enabled with %d rules", filter.Len())
	}

	var kafkaWriter *kafka.Writer
	if cfg.KafkaAddr != "" && cfg.KafkaTopic != "" {
		kafkaWriter = &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.KafkaTopic,
			BatchSize: cfg.KafkaBatch,
		}
		err := createTopic(kafkaWriter.Addr.String(), kafkaWriter.Topic)
		if err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
	} else {
		log.Warnf("[server] kafka was not configured, logs will not be sent to Kafka")
	}

	// A nil *kafka.Writer would reach New as a non-nil MessageWriter.
	var api *devserver.API
	if kafkaWriter != nil {
		api = devserver.New(apiConf, db, kafkaWriter)
	} else {
		api = devserver.New(apiConf, db, nil)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router,
	}

	go func() {
		log.Infof("[server] starting on port %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
			return
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	// Hijacked stream connections are not tracked by Shutdown.
	api.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}

	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			log.Errorf("[server] failed to close Kafka writer: %v", err)
		}
	}

	closeDB(shutdownCtx)
	log.Info("[server] disconnected from DB")
}

func openStorage(ctx context.Context, cfg config.Server, inMemory bool) (storage.Storage, func(context.Context), error) {
	if inMemory {
		log.Info("[server] using in-memory storage")
		return memdb.New(), func(context.Context) {}, nil
	}

	if err := cfg.Mongo.Validate(); err != nil {
		return nil, nil, err
	}
	db, err := mongo.New(ctx, &cfg.Mongo)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close(ctx)
		return nil, nil, err
	}
	if err := db.Init(ctx); err != nil {
		db.Close(ctx)
		return nil, nil, err
	}

	log.Infof("[server] connected to %v", cfg.Mongo)
	closeDB := func(ctx context.Context) {
		if err := db.Close(ctx); err != nil {
			log.Errorf("[server] failed to disconnect from DB: %v", err)
		}
	}
	return db, closeDB, nil
}

func createTopic(broker, topic string) error {
	conn, err := kafka.DialContext(context.Background(), "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
