package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"google.golang.org/grpc"

	api "github.com/oshokin/solar-monitor/internal/api/grpc/console"
	"github.com/oshokin/solar-monitor/internal/api/http/feed"
	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/render"
	"github.com/oshokin/solar-monitor/internal/repository/kv"
	"github.com/oshokin/solar-monitor/internal/service/audio"
	"github.com/oshokin/solar-monitor/internal/service/remote"
	"github.com/oshokin/solar-monitor/internal/settings"
)

// Options controls the solar-console process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ControlAddress overrides control_addr from the configuration.
	ControlAddress string
	// FeedAddress overrides feed_addr from the configuration.
	FeedAddress string
	// Output receives the terminal view; defaults to stdout.
	Output io.Writer
}

// Run starts the console with its control API and blocks until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "solar-console")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Configure(cfg.LogLevel); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	if opts.ControlAddress != "" {
		cfg.ControlAddress = opts.ControlAddress
	}

	if opts.FeedAddress != "" {
		cfg.FeedAddress = opts.FeedAddress
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	store, err := kv.Open(cfg.SettingsStore)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close settings store", "error", closeErr)
		}
	}()

	tunables := settings.NewStore(store, cfg.SettingsKey)
	tunables.Load(ctx)

	source, err := remote.New(cfg.ServiceURL, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("plant service client: %w", err)
	}

	renderers := render.Multi{render.Log{}, render.NewTerminal(output)}

	var hub *feed.Hub
	if cfg.FeedAddress != "" {
		hub = feed.NewHub()
		renderers = append(renderers, hub)
	}

	lc := net.ListenConfig{}

	controlListener, err := lc.Listen(ctx, "tcp", cfg.ControlAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ControlAddress, err)
	}

	var feedListener net.Listener
	if hub != nil {
		feedListener, err = lc.Listen(ctx, "tcp", cfg.FeedAddress)
		if err != nil {
			_ = controlListener.Close()

			return fmt.Errorf("listen on %s: %w", cfg.FeedAddress, err)
		}
	}

	audioDevice := cfg.AudioDevice
	console := New(Deps{
		Source:    source,
		Renderer:  renderers,
		Settings:  tunables,
		OpenAudio: func() (audio.Device, error) { return audio.Open(audioDevice, output) },
	})
	defer console.Dispose()

	if err = console.Start(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Console running",
		"service_url", cfg.ServiceURL,
		"control_address", cfg.ControlAddress,
		"feed_address", cfg.FeedAddress,
		"settings_store", cfg.SettingsStore,
	)

	return serve(ctx, console, controlListener, hub, feedListener)
}

// ServeControl exposes the console's control API on listener until ctx is done.
func ServeControl(ctx context.Context, console api.Console, listener net.Listener) error {
	grpcServer := grpc.NewServer()
	api.Register(grpcServer, api.NewServer(console))

	logger.Infof(ctx, "Control API listening on %s", listener.Addr())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down control API")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	return nil
}

func serve(
	ctx context.Context,
	console *Console,
	controlListener net.Listener,
	hub *feed.Hub,
	feedListener net.Listener,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 2)
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		errs <- ServeControl(ctx, console, controlListener)
	}()

	if hub != nil {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs <- hub.Serve(ctx, feedListener)
		}()
	}

	// The first server to return ends the process.
	err := <-errs
	cancel()
	wg.Wait()

	if err != nil {
		return err
	}

	logger.Info(ctx, "Console shut down")

	return nil
}
