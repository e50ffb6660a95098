package cfg

import "time"

type Cfg struct {
	// Source configuration
	TargetID   int
	SourceFile string

	// Pipeline configuration
	PollInterval    time.Duration
	DrainInterval   time.Duration
	FetchInterval   time.Duration
	ParseInterval   time.Duration
	PendingCapacity int
	ResultCapacity  int
	StopTimeout     time.Duration
	WorkerCount     int
	FetchRate       float64
	FetchBurst      int

	// Archive and fan-out
	DBPath       string
	RedisAddr    string
	RedisKey     string
	RedisMaxLen  int
	KafkaBrokers []string
	KafkaTopic   string

	// Application configuration
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
