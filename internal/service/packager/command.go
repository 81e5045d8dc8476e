package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/remote"
	"github.com/oshokin/solar-monitor/internal/service/updater"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is where the connection settings are saved.
	ConfigPath string
	// ServiceURL is the plant service the installations will poll.
	ServiceURL string
	// UpdateFolder is the URL where the release will be uploaded.
	UpdateFolder string
	// Dir holds the release binaries; the manifest is written there too.
	Dir string
}

// packager prepares update metadata (manifest) for distribution.
type packager struct {
	// cfg holds the settings shipped with every installation.
	cfg *config.Config
	// dir is where the binaries are read and the manifest is written.
	dir string
	// manifest contains the release version, checksums and executable.
	manifest *updater.Manifest
}

// errMissingArtifact is returned when a release binary is absent.
var errMissingArtifact = errors.New("release artifact missing")

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "solar-packager")

	cfg := &config.Config{
		ServiceURL:   opts.ServiceURL,
		UpdateFolder: opts.UpdateFolder,
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if err := config.Save(opts.ConfigPath, cfg); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	if err := ensureServiceReachable(ctx, cfg); err != nil {
		return err
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	pkg := &packager{
		cfg:      cfg,
		dir:      dir,
		manifest: updater.NewManifest(),
	}

	if err := pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// Run populates and writes the manifest to disk.
func (p *packager) Run(ctx context.Context) error {
	logger.Info(ctx, "Preparing update manifest")

	for _, name := range updater.Artifacts() {
		path := filepath.Join(p.dir, name)

		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, errMissingArtifact)
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if err := p.manifest.Add(path); err != nil {
			return err
		}
	}

	contents, err := yaml.Marshal(p.manifest)
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(p.dir, updater.VersionFilename)

	logger.InfoKV(ctx, "Saving update manifest", "path", manifestPath, "version", p.manifest.Version)

	if err = os.WriteFile(manifestPath, contents, updater.DefaultFileMode); err != nil {
		return err
	}

	p.printNextSteps(ctx)

	return nil
}

// printNextSteps logs human-readable guidance for next actions with the created files.
func (p *packager) printNextSteps(ctx context.Context) {
	files := append(p.manifest.Names(), updater.VersionFilename)

	var builder strings.Builder

	builder.WriteString("Upload the following files to ")
	builder.WriteString(p.cfg.UpdateFolder)
	builder.WriteString(":\n")
	builder.WriteString(strings.Join(files, ",\n"))
	builder.WriteString("\n\nOn every console machine, copy ")
	builder.WriteString(updater.Executable("solar-updater"))
	builder.WriteString(" and ")
	builder.WriteString(config.DefaultConfigFilename)
	builder.WriteString(" and set the command to run at system startup: ")
	builder.WriteString(updater.Executable("solar-updater"))

	logger.Info(ctx, builder.String())
}

// ensureServiceReachable verifies that the plant service answers before a
// release pointing at it is published.
func ensureServiceReachable(ctx context.Context, cfg *config.Config) error {
	client, err := remote.New(cfg.ServiceURL, cfg.Timeout)
	if err != nil {
		return err
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("plant service unreachable: %w", err)
	}

	logger.InfoKV(ctx, "Verified connection to plant service",
		"service_url", cfg.ServiceURL,
		"status", status.Status,
	)

	return nil
}
