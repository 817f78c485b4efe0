package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Config holds application configuration
type Config struct {
	DBARN              string
	DBSecretARN        string
	TargetBucket       string
	FallbackLabel      int64
	TrainingPeriod     int // days
	LowVolumePeriod    int // days
	LowVolumeThreshold float64
	GroupIDs           []int64
	PushgatewayURL     string
	LogLevel           string
}

var verbose bool

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <batch_id>\n", filepath.Base(os.Args[0]))
		os.Exit(1)
	}
	batchID := os.Args[1]

	cfg := loadConfig()
	initMetrics()

	// Reject a malformed batch id before touching any AWS service.
	if _, err := parseBatchID(batchID); err != nil {
		log.Fatalf("Invalid batch ID %q: %v", batchID, err)
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	secret, err := loadSecret(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.DBSecretARN)
	if err != nil {
		log.Fatalf("Failed to load database secret: %v", err)
	}
	dbName := secret["dbname"]
	if dbName == "" {
		log.Fatalf("Database secret %s is missing the dbname field", cfg.DBSecretARN)
	}

	db, err := newDBClient(ctx, rdsdata.NewFromConfig(awsCfg), cfg.DBARN, cfg.DBSecretARN, dbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	p := &preparer{
		cfg: cfg,
		db:  db,
		s3:  s3.NewFromConfig(awsCfg),
	}

	started := time.Now()
	if err := p.prepareDataset(ctx, batchID); err != nil {
		log.Fatalf("Execution failed: %v", err)
	}
	runDurationSeconds.Set(time.Since(started).Seconds())

	if cfg.PushgatewayURL != "" {
		if err := pushMetrics(cfg.PushgatewayURL, batchID); err != nil {
			log.Printf("Failed to push metrics: %v", err)
		}
	}

	log.Println("Execution successful")
}

func loadConfig() *Config {
	cfg := &Config{
		DBARN:              os.Getenv("DB_ARN"),
		DBSecretARN:        os.Getenv("DB_SECRET_ARN"),
		TargetBucket:       os.Getenv("TARGET_BUCKET"),
		TrainingPeriod:     getIntEnvOrDefault("TRAINING_PERIOD", 90),
		LowVolumePeriod:    getIntEnvOrDefault("LOW_VOLUME_PERIOD", 365),
		LowVolumeThreshold: getFloatEnvOrDefault("LOW_VOLUME_THRESHOLD", 0.033),
		PushgatewayURL:     os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	// Validate required configuration
	if cfg.DBARN == "" {
		log.Fatal("DB_ARN is required")
	}
	if cfg.DBSecretARN == "" {
		log.Fatal("DB_SECRET_ARN is required")
	}
	if cfg.TargetBucket == "" {
		log.Fatal("TARGET_BUCKET is required")
	}

	fallback := os.Getenv("LOW_VOLUME_FALLBACK_LABEL")
	if fallback == "" {
		log.Fatal("LOW_VOLUME_FALLBACK_LABEL is required")
	}
	label, err := strconv.ParseInt(fallback, 10, 64)
	if err != nil {
		log.Fatalf("LOW_VOLUME_FALLBACK_LABEL must be an integer: %v", err)
	}
	cfg.FallbackLabel = label

	if raw := os.Getenv("TICKET_GROUP_IDS"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				log.Fatalf("TICKET_GROUP_IDS must be a comma separated list of integers: %v", err)
			}
			cfg.GroupIDs = append(cfg.GroupIDs, id)
		}
	}

	verbose = strings.EqualFold(cfg.LogLevel, "DEBUG")

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%f", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
