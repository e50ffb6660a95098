package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Source configuration
	TargetID   int    `long:"target-id" env:"TARGET_ID" description:"Identifier of the remote room/channel to follow"`
	SourceFile string `long:"source" env:"SOURCE_FILE" default:"./source.yml" description:"YAML file describing the remote endpoint"`

	// Pipeline configuration
	PollInterval    int     `long:"poll-interval" env:"POLL_INTERVAL" default:"3000" description:"Interval between fetch submissions in milliseconds"`
	DrainInterval   int     `long:"drain-interval" env:"DRAIN_INTERVAL" default:"1000" description:"Interval between result drains in milliseconds"`
	FetchInterval   int     `long:"fetch-interval" env:"FETCH_INTERVAL" default:"500" description:"Fetch stage idle sleep in milliseconds"`
	ParseInterval   int     `long:"parse-interval" env:"PARSE_INTERVAL" default:"500" description:"Parse stage idle sleep in milliseconds"`
	PendingCapacity int     `long:"pending-capacity" env:"PENDING_CAPACITY" default:"128" description:"Initial capacity of the pending fetch mailbox"`
	ResultCapacity  int     `long:"result-capacity" env:"RESULT_CAPACITY" default:"256" description:"Maximum number of undrained results kept"`
	StopTimeout     int     `long:"stop-timeout" env:"STOP_TIMEOUT" default:"5" description:"Seconds to wait for pipeline stages on shutdown"`
	WorkerCount     int     `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background task workers"`
	FetchRate       float64 `long:"fetch-rate" env:"FETCH_RATE" default:"2" description:"Maximum fetches per second against the source"`
	FetchBurst      int     `long:"fetch-burst" env:"FETCH_BURST" default:"1" description:"Fetch rate limiter burst"`

	// Archive and fan-out
	DBPath       string   `long:"db-path" env:"DB_PATH" default:"./data/chat-comb.db" description:"SQLite archive path"`
	RedisAddr    string   `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for publishing drained messages (optional)"`
	RedisKey     string   `long:"redis-key" env:"REDIS_KEY" default:"chat-comb:messages" description:"Redis list receiving drained messages"`
	RedisMaxLen  int      `long:"redis-max-len" env:"REDIS_MAX_LEN" default:"1000" description:"Maximum length of the Redis list"`
	KafkaBrokers []string `long:"kafka-broker" env:"KAFKA_BROKERS" env-delim:"," description:"Kafka brokers for publishing drained messages (optional)"`
	KafkaTopic   string   `long:"kafka-topic" env:"KAFKA_TOPIC" default:"chat-comb.messages" description:"Kafka topic receiving drained messages"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://chat.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Chat Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps without offset (e.g., UTC, Asia/Shanghai)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		TargetID:        raw.TargetID,
		SourceFile:      raw.SourceFile,
		PollInterval:    time.Duration(raw.PollInterval) * time.Millisecond,
		DrainInterval:   time.Duration(raw.DrainInterval) * time.Millisecond,
		FetchInterval:   time.Duration(raw.FetchInterval) * time.Millisecond,
		ParseInterval:   time.Duration(raw.ParseInterval) * time.Millisecond,
		PendingCapacity: raw.PendingCapacity,
		ResultCapacity:  raw.ResultCapacity,
		StopTimeout:     time.Duration(raw.StopTimeout) * time.Second,
		WorkerCount:     raw.WorkerCount,
		FetchRate:       raw.FetchRate,
		FetchBurst:      raw.FetchBurst,
		DBPath:          raw.DBPath,
		RedisAddr:       raw.RedisAddr,
		RedisKey:        raw.RedisKey,
		RedisMaxLen:     raw.RedisMaxLen,
		KafkaBrokers:    raw.KafkaBrokers,
		KafkaTopic:      raw.KafkaTopic,
		Port:            raw.Port,
		BaseUrl:         raw.BaseUrl,
		APIAccessKey:    raw.APIAccessKey,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) validate() error {
	positive := map[string]int{
		"poll interval":   int(c.PollInterval),
		"drain interval":  int(c.DrainInterval),
		"fetch interval":  int(c.FetchInterval),
		"parse interval":  int(c.ParseInterval),
		"stop timeout":    int(c.StopTimeout),
		"result capacity": c.ResultCapacity,
		"worker count":    c.WorkerCount,
	}

	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.PendingCapacity < 0 {
		return fmt.Errorf("pending capacity must be non-negative")
	}
	if c.FetchRate < 0 {
		return fmt.Errorf("fetch rate must be non-negative")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
