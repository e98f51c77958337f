package cfg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fetcharr/internal/domain/consts"
	"fetcharr/internal/domain/keys"
)

var rootCmd = &cobra.Command{
	Use:   "fetcharr",
	Short: "Fetcharr is a media download manager with a web API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("help").Changed {
			return nil // Stop further execution if help is invoked
		}
		viper.Set(keys.Execute, true)
		return nil
	},
}

// Execute parses flags and environment configuration.
func Execute() error {
	return rootCmd.Execute()
}

// InitCommands initializes the root command flags and viper bindings.
func InitCommands() {
	pf := rootCmd.PersistentFlags()

	pf.String(keys.Port, consts.DefaultPort, "HTTP listen port")
	pf.String(keys.DownloadDir, defaultDownloadDir(), "Base directory for job working directories")
	pf.Int(keys.MaxDownloads, consts.DefaultMaxWorkers, "Maximum simultaneous downloads")
	pf.Int(keys.RetentionHours, consts.DefaultRetentionHours, "Hours to retain completed jobs before cleanup")
	pf.Int(keys.CleanupEveryN, consts.DefaultCleanupEveryN, "Run retention cleanup every N requests")
	pf.Int(keys.RateLimitKB, 0, "Global per-job rate limit in KB/s (0 = unlimited)")
	pf.Bool(keys.CookieSource, false, "Pass browser cookies to the downloader")
	pf.String(keys.DBPath, defaultDBPath(), "Path to the session database")
	pf.String(keys.YtdlpPath, "", "Path to the yt-dlp executable")
	pf.Int(keys.DebugLevel, 0, "Debug level (0-5)")

	for _, key := range []string{
		keys.Port, keys.DownloadDir, keys.MaxDownloads, keys.RetentionHours,
		keys.CleanupEveryN, keys.RateLimitKB, keys.CookieSource, keys.DBPath,
		keys.YtdlpPath, keys.DebugLevel,
	} {
		if err := viper.BindPFlag(key, pf.Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("fetcharr")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// defaultDownloadDir prefers the user's Downloads folder, falling back to a
// local directory when no home is resolvable.
func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".fetcharr", "fetcharr.db")
	}
	return filepath.Join(home, ".fetcharr", "fetcharr.db")
}
