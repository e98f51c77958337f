// Package command holds external command names and argument constants.
package command

// General
const (
	YTDLP = "yt-dlp"

	AfterMove         = "after_move:%(filepath)s"
	CookiePath        = "--cookies"
	FilenameSyntax    = "%(title).120s [%(id)s].%(ext)s"
	FragmentRetries   = "--fragment-retries"
	LimitRate         = "--limit-rate"
	MergeOutputFormat = "--merge-output-format"
	Newline           = "--newline"
	Output            = "-o"
	Paths             = "-P"
	Print             = "--print"
	ProgressTemplate  = "--progress-template"
	RestrictFilenames = "--restrict-filenames"
	Retries           = "--retries"
	SkipUnavailFrags  = "--skip-unavailable-fragments"
)

// Format selection
const (
	Format           = "-f"
	FormatBestAudio  = "bestaudio/best"
	FormatBestVideo  = "bestvideo+bestaudio/best"
	ExtractAudio     = "--extract-audio"
	AudioFormat      = "--audio-format"
	AudioQuality     = "--audio-quality"
	DefaultAudioExt  = "mp3"
	DefaultAudioKbps = "192"
	DefaultVideoExt  = "mp4"
)

// Metadata / search only
const (
	DumpJSON      = "-J"
	FlatPlaylist  = "--flat-playlist"
	NoWarnings    = "--no-warnings"
	Quiet         = "-q"
	SkipVideo     = "--skip-download"
	SearchPrefix  = "ytsearch"
)

// ProgressPrefix tags machine-readable progress lines emitted via
// --progress-template so they can be told apart from other output.
const ProgressPrefix = "FETCHARR"

// ProgressFormat is the value passed to --progress-template. Fields are
// pipe-separated: downloaded, total, total estimate, speed, eta, filename.
const ProgressFormat = "download:" + ProgressPrefix +
	"|%(progress.downloaded_bytes)s" +
	"|%(progress.total_bytes)s" +
	"|%(progress.total_bytes_estimate)s" +
	"|%(progress.speed)s" +
	"|%(progress.eta)s" +
	"|%(info.filename)s"
