// Package keys holds Viper configuration key names.
package keys

const (
	Port            = "port"
	DownloadDir     = "download-dir"
	MaxDownloads    = "max-downloads"
	RetentionHours  = "retention-hours"
	CleanupEveryN   = "cleanup-interval"
	RateLimitKB     = "rate-limit"
	CookieSource    = "cookies-from-browser"
	DBPath          = "db-path"
	DebugLevel      = "debug"
	YtdlpPath       = "ytdlp-path"
	Execute         = "execute"
)
