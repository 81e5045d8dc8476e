package fixture

import (
	"context"
	"fmt"
	"net"

	"github.com/oshokin/solar-monitor/internal/api/http/fixture"
	"github.com/oshokin/solar-monitor/internal/logger"
)

// DefaultListenAddress is where the fixture service answers by default.
const DefaultListenAddress = "127.0.0.1:5000"

// DefaultFleetFilename is the default fleet description.
const DefaultFleetFilename = "solar-fixture-fleet.yaml"

// Options controls the solar-fixture process.
type Options struct {
	// FleetPath is the YAML fleet description.
	FleetPath string
	// ListenAddress is the HTTP listen address.
	ListenAddress string
}

// Run serves the fleet until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "solar-fixture")

	fleetPath := opts.FleetPath
	if fleetPath == "" {
		fleetPath = DefaultFleetFilename
	}

	fleet, err := fixture.LoadFleet(fleetPath)
	if err != nil {
		return fmt.Errorf("load fleet: %w", err)
	}

	listenAddress := opts.ListenAddress
	if listenAddress == "" {
		listenAddress = DefaultListenAddress
	}

	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Fixture plant service starting",
		"fleet", fleetPath,
		"plants", len(fleet.Plants),
		"monitoring", fleet.Monitoring,
	)

	return fixture.NewServer(fleet).Serve(ctx, listener)
}
