package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/solar-monitor/internal/logger"
)

// markerLifetime is the period after which a stale update marker is ignored.
const markerLifetime = 30 * time.Second

var errUpdaterAlreadyRunning = errors.New("the updater is already running")

// TerminateFunc kills every other process whose executable name is listed.
type TerminateFunc func(ctx context.Context, names []string) error

// TerminateProcesses kills running processes by executable name, skipping
// the current one.
func TerminateProcesses(ctx context.Context, names []string) error {
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	processList, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if _, found := wanted[process.Executable()]; !found {
			continue
		}

		runningProcess, err := os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return fmt.Errorf("kill %s (%d): %w", process.Executable(), process.Pid(), err)
		}

		logger.InfoKV(ctx, "Terminated process", "executable", process.Executable(), "pid", process.Pid())
	}

	return nil
}

// acquireMarker creates the update marker in dir. A fresh marker means
// another updater is at work; a stale one is taken over after terminating
// leftover updater processes.
func acquireMarker(ctx context.Context, dir string, terminate TerminateFunc) (func(), error) {
	path := filepath.Join(dir, MarkerFilename)

	info, err := os.Stat(path)
	switch {
	case err == nil && time.Since(info.ModTime()) <= markerLifetime:
		return nil, errUpdaterAlreadyRunning
	case err == nil:
		logger.Info(ctx, "The update marker is too old, attempting cleanup")

		if err = terminate(ctx, []string{Executable(updaterBase)}); err != nil {
			return nil, fmt.Errorf("terminate stale updater: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		logger.Warnf(ctx, "Unable to read update marker: %v", err)
	}

	if err = os.WriteFile(path, nil, DefaultFileMode); err != nil {
		return nil, fmt.Errorf("create update marker: %w", err)
	}

	return func() {
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.Warnf(ctx, "Unable to remove update marker: %v", removeErr)
		}
	}, nil
}
