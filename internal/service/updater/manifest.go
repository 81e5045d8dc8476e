package updater

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/oshokin/solar-monitor/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// VersionFilename stores the release manifest.
	VersionFilename = "solar-monitor-version.yaml"

	// MarkerFilename marks that the updater is running right now to avoid parallel execution.
	MarkerFilename = "solar-monitor-update-marker.bin"

	// DefaultFileMode is used when producing and applying artifacts.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate artifact hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// Base executable names; Executable appends the platform extension.
	consoleBase = "solar-console"
	ctlBase     = "solar-ctl"
	updaterBase = "solar-updater"
)

var (
	errHashUnavailable = errors.New("hash function unavailable")
	errNoChecksum      = errors.New("checksum missing for file")
)

// Manifest describes a published release.
type Manifest struct {
	// Version is the semantic version of this release.
	Version string `yaml:"version"`
	// Files maps file names to their base64-encoded SHA-512 checksums.
	Files map[string]string `yaml:"files"`
	// Executable is the binary started after the update.
	Executable string `yaml:"executable"`
}

// NewManifest returns a manifest for the running build.
func NewManifest() *Manifest {
	return &Manifest{
		Version:    version.Short(),
		Files:      make(map[string]string, len(Artifacts())),
		Executable: Executable(consoleBase),
	}
}

// Names returns the file names of the manifest in a stable order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Checksum decodes the published checksum of a file.
func (m *Manifest) Checksum(name string) ([]byte, error) {
	encoded, ok := m.Files[name]
	if !ok {
		return nil, fmt.Errorf("checksum for %s: %w", name, errNoChecksum)
	}

	checksum, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("checksum for %s: %w", name, err)
	}

	return checksum, nil
}

// Add records the checksum of the file at path under its base name.
func (m *Manifest) Add(path string) error {
	checksum, err := FileChecksum(path)
	if err != nil {
		return err
	}

	m.Files[filepath.Base(path)] = base64.StdEncoding.EncodeToString(checksum)

	return nil
}

// Artifacts lists the files a release carries for this platform.
// The YAML configuration is local to each installation and never shipped.
func Artifacts() []string {
	return []string{
		Executable(consoleBase),
		Executable(ctlBase),
		Executable(updaterBase),
	}
}

// Executable appends ".exe" on Windows.
func Executable(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}

	return base
}

// FileChecksum returns the checksum of a file using DefaultChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
