package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"fetcharr/internal/domain/command"
	"fetcharr/internal/utils/logging"
)

// YtDLP is the production Engine implementation, shelling out to yt-dlp.
type YtDLP struct {
	// Bin is the yt-dlp executable name or path.
	Bin string
}

// NewYtDLP returns a yt-dlp backed engine.
func NewYtDLP(bin string) *YtDLP {
	if bin == "" {
		bin = command.YTDLP
	}
	return &YtDLP{Bin: bin}
}

// Fetch downloads the media at url into opts.OutputDir, streaming progress
// through opts.OnProgress. A non-nil error from the hook kills the transfer
// and is returned unchanged.
func (y *YtDLP) Fetch(ctx context.Context, url string, opts Options) error {
	cmd := y.buildFetchCommand(ctx, url, opts)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe error: %w", err)
	}

	// Set process group to allow killing child processes too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("command start error: %w", err)
	}

	var (
		hookErr  error
		lastLine string
	)

	scanner := bufio.NewScanner(io.MultiReader(stdout, stderr))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		lastLine = line

		update, ok := parseOutputLine(line)
		if !ok {
			continue
		}
		if opts.OnProgress == nil {
			continue
		}
		if err := opts.OnProgress(update); err != nil {
			hookErr = err
			killProcessGroup(cmd)
			// Keep draining so Wait can reap the process.
		}
	}
	if err := scanner.Err(); err != nil {
		logging.E("Scanner error for %s: %v", url, err)
	}

	waitErr := cmd.Wait()
	if hookErr != nil {
		return hookErr
	}
	if waitErr != nil {
		return fmt.Errorf("yt-dlp failed for %s: %w: %s", url, waitErr, lastLine)
	}
	return nil
}

// Metadata resolves the info document for url without downloading.
func (y *YtDLP) Metadata(ctx context.Context, url string) (Metadata, error) {
	args := []string{
		command.DumpJSON,
		command.SkipVideo,
		command.NoWarnings,
		command.Quiet,
		url,
	}
	out, err := y.runJSON(ctx, args)
	if err != nil {
		return nil, err
	}

	var info Metadata
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp metadata for %s: %w", url, err)
	}
	return info, nil
}

// Search runs a flat search against the default provider, returning at most
// limit entries.
func (y *YtDLP) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit < 1 {
		limit = 1
	}
	target := fmt.Sprintf("%s%d:%s", command.SearchPrefix, limit, query)

	args := []string{
		command.DumpJSON,
		command.FlatPlaylist,
		command.SkipVideo,
		command.NoWarnings,
		command.Quiet,
		target,
	}
	out, err := y.runJSON(ctx, args)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode search results for %q: %w", query, err)
	}

	results := make([]SearchResult, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		results = append(results, searchResultFromEntry(e))
	}
	return results, nil
}

// buildFetchCommand assembles the yt-dlp invocation for one transfer.
func (y *YtDLP) buildFetchCommand(ctx context.Context, url string, opts Options) *exec.Cmd {
	args := make([]string, 0, 32)

	args = append(args, command.RestrictFilenames)
	args = append(args, command.Output, filepath.Join(opts.OutputDir, command.FilenameSyntax))
	args = append(args, command.Paths, opts.OutputDir)

	// Machine-readable progress plus the final path printed on completion.
	args = append(args, command.Newline)
	args = append(args, command.ProgressTemplate, command.ProgressFormat)
	args = append(args, command.Print, command.AfterMove)

	switch {
	case opts.FormatID != "":
		args = append(args, command.Format, opts.FormatID)
	case opts.FormatType == "audio":
		args = append(args, command.Format, command.FormatBestAudio)
		args = append(args, command.ExtractAudio)
		args = append(args, command.AudioFormat, command.DefaultAudioExt)
		args = append(args, command.AudioQuality, command.DefaultAudioKbps)
	default:
		args = append(args, command.Format, command.FormatBestVideo)
		args = append(args, command.MergeOutputFormat, command.DefaultVideoExt)
	}

	if opts.RateLimitBps > 0 {
		args = append(args, command.LimitRate, strconv.FormatInt(opts.RateLimitBps, 10))
	}

	if opts.FragmentRetries > 0 {
		args = append(args, command.Retries, strconv.Itoa(opts.FragmentRetries))
		args = append(args, command.FragmentRetries, strconv.Itoa(opts.FragmentRetries))
		args = append(args, command.SkipUnavailFrags)
	}

	if opts.CookieFile != "" {
		args = append(args, command.CookiePath, opts.CookieFile)
	}

	// Target URL must go last.
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.Bin, args...)
	logging.D(1, "Built fetch command for URL %q:\n%v", url, cmd.String())
	return cmd
}

// runJSON executes yt-dlp and returns its stdout, which is expected to hold
// a single JSON document.
func (y *YtDLP) runJSON(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, y.Bin, args...)
	logging.D(3, "Built metadata command:\n%v", cmd.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("yt-dlp error: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("yt-dlp error: %w", err)
	}
	return stdout.Bytes(), nil
}

// killProcessGroup terminates the command's whole process group.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		logging.D(2, "Process group kill failed (pid %d): %v", cmd.Process.Pid, err)
		_ = cmd.Process.Kill()
	}
}

// searchResultFromEntry maps one flat-playlist entry to a SearchResult.
func searchResultFromEntry(e map[string]any) SearchResult {
	r := SearchResult{
		ID:       stringField(e, "id"),
		Title:    stringField(e, "title"),
		URL:      stringField(e, "url"),
		Uploader: stringField(e, "uploader"),
	}
	if r.URL == "" {
		r.URL = stringField(e, "webpage_url")
	}
	if thumb := stringField(e, "thumbnail"); thumb != "" {
		r.Thumbnail = thumb
	}
	r.Duration = int64Field(e, "duration")
	r.ViewCount = int64Field(e, "view_count")
	return r
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
