package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port    string
	UDPPort int
	Env     string

	DatabasePath string

	StaleAfter         time.Duration
	PrintTimeout       time.Duration
	QueueInterval      time.Duration
	SweepInterval      time.Duration
	DeviceListInterval time.Duration
	BroadcastInterval  time.Duration

	ResetEnabled       bool
	ResetTime          string
	ResetTickets       bool
	ResetFiles         bool
	ResetCache         bool
	ResetArtifactDirs  []string
	ResetRetentionDays int

	RateLimitPerMinute int
	RateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "casnos.db"
	}
	resetTime := os.Getenv("RESET_TIME")
	if resetTime == "" {
		resetTime = "00:00"
	}

	return Config{
		Port:         port,
		UDPPort:      readInt("UDP_PORT", 4001),
		Env:          os.Getenv("ENV"),
		DatabasePath: dbPath,

		StaleAfter:         readDurationSeconds("DEVICE_STALE_SECONDS", 60),
		PrintTimeout:       readDurationSeconds("PRINT_TIMEOUT_SECONDS", 10),
		QueueInterval:      readDurationSeconds("QUEUE_UPDATE_SECONDS", 5),
		SweepInterval:      readDurationSeconds("HEALTH_SWEEP_SECONDS", 30),
		DeviceListInterval: readDurationSeconds("DEVICE_LIST_SECONDS", 60),
		BroadcastInterval:  readDurationSeconds("DISCOVERY_BROADCAST_SECONDS", 30),

		ResetEnabled:       readBool("RESET_ENABLED", true),
		ResetTime:          resetTime,
		ResetTickets:       readBool("RESET_TICKETS", true),
		ResetFiles:         readBool("RESET_FILES", true),
		ResetCache:         readBool("RESET_CACHE", true),
		ResetArtifactDirs:  readList("RESET_ARTIFACT_DIRS"),
		ResetRetentionDays: readInt("RESET_RETENTION_DAYS", 30),

		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 300),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 60),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
