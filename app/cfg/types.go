package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath    string
	ConfigDir string

	// HTTP server
	Port    string
	BaseUrl string

	// Background work
	WorkerCount       int
	SchedulerInterval int
	IngestInterval    int
	ArchiveInterval   int
	RetentionDays     int
	FetchTimeout      int

	// Secrets
	InternalSecret string
	JWTSecret      string

	// Cold archive export
	ArchiveBucket string
	ArchiveDir    string

	// Alerts
	SoundCooldownMs int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Cfg) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *Cfg) SoundCooldown() time.Duration {
	return time.Duration(c.SoundCooldownMs) * time.Millisecond
}
