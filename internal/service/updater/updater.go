package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/version"
)

// versionCommandTimeout is the timeout for executing version commands.
const versionCommandTimeout = 10 * time.Second

var (
	errNoUpdateFolder       = errors.New("update folder is not configured")
	errBadHTTPStatus        = errors.New("unexpected http status")
	errInvalidVersionOutput = errors.New("invalid version output format")
	errUnsupportedOS        = errors.New("os not supported")
	errEmptyManifest        = errors.New("update manifest lists no files")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// UpdateFolder overrides update_folder from the configuration.
	UpdateFolder string
	// Dir is the installation directory; defaults to the working directory.
	Dir string
	// NoRestart skips starting the console after the update.
	NoRestart bool
}

// VersionFunc reports the version of the installed executable at path,
// or "" when it cannot be determined.
type VersionFunc func(ctx context.Context, path string) string

// StartFunc launches the executable at path.
type StartFunc func(ctx context.Context, path string) error

// Updater applies releases from one update folder to one directory.
type Updater struct {
	folder       *url.URL
	dir          string
	client       *http.Client
	terminate    TerminateFunc
	localVersion VersionFunc
	start        StartFunc
}

// Option customizes an Updater.
type Option func(*Updater)

// WithHTTPClient replaces the client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(u *Updater) { u.client = client }
}

// WithTerminate replaces the process terminator.
func WithTerminate(terminate TerminateFunc) Option {
	return func(u *Updater) { u.terminate = terminate }
}

// WithVersionFunc replaces local version detection.
func WithVersionFunc(fn VersionFunc) Option {
	return func(u *Updater) { u.localVersion = fn }
}

// WithStart replaces how the console is launched after an update.
func WithStart(start StartFunc) Option {
	return func(u *Updater) { u.start = start }
}

// New creates an updater for the release folder at rawURL installing into dir.
func New(rawURL, dir string, opts ...Option) (*Updater, error) {
	if rawURL == "" {
		return nil, errNoUpdateFolder
	}

	folder, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid update folder: %w", err)
	}

	if dir == "" {
		dir = "."
	}

	u := &Updater{
		folder:       folder,
		dir:          dir,
		client:       &http.Client{Timeout: config.DefaultTimeout},
		terminate:    TerminateProcesses,
		localVersion: ExecutableVersion,
		start:        StartDetached,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u, nil
}

// Run executes the updater lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "solar-updater")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	folder := cfg.UpdateFolder
	if opts.UpdateFolder != "" {
		folder = opts.UpdateFolder
	}

	u, err := New(folder, opts.Dir, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	if err != nil {
		return err
	}

	updated, err := u.Update(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Updater run failed", "error", err)

		return err
	}

	if opts.NoRestart {
		logger.InfoKV(ctx, "Updater completed", "updated", updated)

		return nil
	}

	if err = u.Restart(ctx); err != nil {
		return fmt.Errorf("start console: %w", err)
	}

	logger.InfoKV(ctx, "Updater completed", "updated", updated)

	return nil
}

// Update brings the installation in line with the published manifest.
// It reports whether any file was replaced.
func (u *Updater) Update(ctx context.Context) (bool, error) {
	release, err := acquireMarker(ctx, u.dir, u.terminate)
	if err != nil {
		return false, err
	}

	defer release()

	logger.Info(ctx, "Downloading the update manifest")

	manifest, err := u.fetchManifest(ctx)
	if err != nil {
		return false, fmt.Errorf("download update manifest: %w", err)
	}

	stale, err := u.staleFiles(ctx, manifest)
	if err != nil {
		return false, err
	}

	if len(stale) == 0 {
		logger.InfoKV(ctx, "No update required, version and files are current", "version", manifest.Version)

		return false, nil
	}

	logger.InfoKV(ctx, "Update required", "version", manifest.Version, "files", stale)

	if err = u.terminate(ctx, manifest.Names()); err != nil {
		return false, fmt.Errorf("terminate solar-monitor processes: %w", err)
	}

	temporaryDirectory, err := os.MkdirTemp("", "solar-monitor-updater-")
	if err != nil {
		return false, err
	}

	defer func() {
		_ = os.RemoveAll(temporaryDirectory)
	}()

	for _, name := range stale {
		if err = u.apply(ctx, manifest, name, temporaryDirectory); err != nil {
			return false, fmt.Errorf("update %s: %w", name, err)
		}
	}

	return true, nil
}

// Restart launches the console from the installation directory.
func (u *Updater) Restart(ctx context.Context) error {
	executable := filepath.Join(u.dir, Executable(consoleBase))

	logger.InfoKV(ctx, "Starting executable", "executable", executable)

	return u.start(ctx, executable)
}

// staleFiles lists the manifest files whose local copy is missing or differs.
// A version mismatch marks every file stale.
func (u *Updater) staleFiles(ctx context.Context, manifest *Manifest) ([]string, error) {
	names := manifest.Names()
	if len(names) == 0 {
		return nil, errEmptyManifest
	}

	localVersion := u.localVersion(ctx, filepath.Join(u.dir, manifest.Executable))
	if localVersion != manifest.Version {
		logger.InfoKV(ctx, "Version mismatch detected", "local", localVersion, "remote", manifest.Version)

		return names, nil
	}

	logger.InfoKV(ctx, "Versions match, checking file integrity", "version", localVersion)

	var stale []string

	for _, name := range names {
		published, err := manifest.Checksum(name)
		if err != nil {
			return nil, err
		}

		local, err := FileChecksum(filepath.Join(u.dir, name))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		if !bytes.Equal(published, local) {
			stale = append(stale, name)
		}
	}

	return stale, nil
}

// apply downloads one file and swaps it in with go-update, which verifies
// the checksum before replacing the target.
func (u *Updater) apply(ctx context.Context, manifest *Manifest, name, temporaryDirectory string) error {
	checksum, err := manifest.Checksum(name)
	if err != nil {
		return err
	}

	downloaded := filepath.Join(temporaryDirectory, name)
	if err = u.download(ctx, name, downloaded); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(downloaded))
	if err != nil {
		return err
	}

	target := filepath.Join(u.dir, name)

	// go-update renames the target away first, so it has to exist.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(target, nil, DefaultFileMode); err != nil {
			return err
		}
	}

	logger.DebugKV(ctx, "Applying update", "file", target)

	err = goupdate.Apply(bytes.NewReader(data), goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	})
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Updated file", "file", target)

	return nil
}

func (u *Updater) fetchManifest(ctx context.Context) (*Manifest, error) {
	var buffer bytes.Buffer
	if err := u.fetch(ctx, VersionFilename, &buffer); err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := yaml.Unmarshal(buffer.Bytes(), &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if manifest.Executable == "" {
		manifest.Executable = Executable(consoleBase)
	}

	return &manifest, nil
}

func (u *Updater) download(ctx context.Context, name, destination string) error {
	output, err := os.Create(filepath.Clean(destination))
	if err != nil {
		return err
	}

	if err = u.fetch(ctx, name, output); err != nil {
		_ = output.Close()

		return err
	}

	return output.Close()
}

// fetch copies a file from the update folder into w.
func (u *Updater) fetch(ctx context.Context, name string, w io.Writer) error {
	fileURL := *u.folder
	// Use path.Join to normalize duplicate slashes when composing the URL path.
	fileURL.Path = path.Join(fileURL.Path, name)
	finalURL := fileURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := u.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	if _, err = io.Copy(w, response.Body); err != nil {
		return fmt.Errorf("read %s: %w", finalURL, err)
	}

	return nil
}

// ExecutableVersion runs "<path> version" and parses its output.
func ExecutableVersion(ctx context.Context, path string) string {
	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, path, "version").Output()
	if err != nil {
		// Not an error, might be the first install.
		logger.Warnf(ctx, "Could not get local version from %s: %v", path, err)

		return ""
	}

	localVersion, err := parseVersionFromOutput(string(output))
	if err != nil {
		logger.Warnf(ctx, "Could not parse version of %s: %v", path, err)

		return ""
	}

	return localVersion
}

// parseVersionFromOutput extracts the semantic version from version.Full output.
func parseVersionFromOutput(output string) (string, error) {
	// Parse "version: 1.0.0, commit: abc123, built at: ..." → "1.0.0"
	output = strings.TrimSpace(output)

	head, _, _ := strings.Cut(output, ",")
	if localVersion, ok := strings.CutPrefix(head, "version: "); ok {
		if localVersion = strings.TrimSpace(localVersion); localVersion != "" {
			return localVersion, nil
		}
	}

	return "", errInvalidVersionOutput
}

// StartDetached launches the executable without waiting for it.
func StartDetached(ctx context.Context, path string) error {
	// The child must outlive the updater.
	ctx = context.WithoutCancel(ctx)

	switch runtime.GOOS {
	case "linux", "darwin", "freebsd":
		return exec.CommandContext(ctx, path).Start()
	case "windows":
		return exec.CommandContext(ctx, "cmd.exe", "/C", "start", "", path).Start()
	default:
		return fmt.Errorf("%s OS is not supported: %w", runtime.GOOS, errUnsupportedOS)
	}
}
