package fixture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/oshokin/solar-monitor/internal/domain/plant"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/remote"
)

const (
	// timestampLayout matches the service's last_update format.
	timestampLayout   = "2006-01-02 15:04:05"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second

	statusSuccess = "success"
	statusError   = "error"
)

// Server serves the plant API from memory.
type Server struct {
	router *gin.Engine
	now    func() time.Time

	mu         sync.RWMutex
	plants     plant.Snapshots
	monitoring bool
	interval   time.Duration
	// wake restarts the background refresher after a monitoring change.
	wake chan struct{}
}

// NewServer creates a server holding the fleet's plants.
func NewServer(fleet *Fleet) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:     gin.New(),
		now:        time.Now,
		plants:     make(plant.Snapshots, len(fleet.Plants)),
		monitoring: fleet.Monitoring,
		interval:   time.Duration(fleet.UpdateInterval) * time.Second,
		wake:       make(chan struct{}, 1),
	}

	for _, snapshot := range fleet.Plants {
		s.plants[snapshot.ID] = snapshot
	}

	s.router.Use(gin.Recovery())

	api := s.router.Group("/api")
	{
		api.GET("/plants", s.getPlants)
		api.GET("/plants/:id", s.getPlant)
		api.GET("/update", s.update)
		api.GET("/monitoring/start", s.startMonitoring)
		api.GET("/monitoring/stop", s.stopMonitoring)
		api.GET("/status", s.status)
	}

	return s
}

// Handler returns the HTTP handler of the service.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetPlant replaces or adds one plant.
func (s *Server) SetPlant(snapshot plant.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plants[snapshot.ID] = snapshot
}

// Monitoring reports whether background refresh is enabled.
func (s *Server) Monitoring() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.monitoring
}

// Serve answers on listener and refreshes plants in the background while
// monitoring is enabled, until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.refreshLoop(ctx)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf(ctx, "Fixture shutdown: %v", err)
		}
	}()

	logger.InfoKV(ctx, "Fixture plant service listening", "address", listener.Addr().String(), "plants", len(s.snapshot()))

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve fixture: %w", err)
	}

	return nil
}

func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			ticker.Reset(s.interval)
		case <-ticker.C:
			if s.Monitoring() {
				s.restamp()
				logger.Debug(ctx, "Fixture plants refreshed")
			}
		}
	}
}

// restamp marks every reachable plant as just read and returns the per-plant outcome.
func (s *Server) restamp() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().Format(timestampLayout)
	results := make(map[string]bool, len(s.plants))

	for id, snapshot := range s.plants {
		results[id] = snapshot.IsOnline

		if snapshot.IsOnline {
			snapshot.LastUpdate = stamp
			s.plants[id] = snapshot
		}
	}

	return results
}

func (s *Server) snapshot() plant.Snapshots {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.plants.Clone()
}

func (s *Server) getPlants(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) getPlant(c *gin.Context) {
	s.mu.RLock()
	snapshot, ok := s.plants[c.Param("id")]
	s.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "plant not found"})

		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) update(c *gin.Context) {
	results := s.restamp()

	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"message": "update completed",
		"results": results,
		"plants":  s.snapshot(),
	})
}

func (s *Server) startMonitoring(c *gin.Context) {
	c.JSON(http.StatusOK, s.setMonitoring(true))
}

func (s *Server) stopMonitoring(c *gin.Context) {
	c.JSON(http.StatusOK, s.setMonitoring(false))
}

func (s *Server) setMonitoring(active bool) remote.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.monitoring == active {
		if active {
			return remote.Result{Status: statusError, Message: "monitoring already active"}
		}

		return remote.Result{Status: statusError, Message: "monitoring not active"}
	}

	s.monitoring = active

	select {
	case s.wake <- struct{}{}:
	default:
	}

	if active {
		return remote.Result{Status: statusSuccess, Message: "monitoring started"}
	}

	return remote.Result{Status: statusSuccess, Message: "monitoring stopped"}
}

func (s *Server) status(c *gin.Context) {
	s.mu.RLock()
	monitoring := s.monitoring
	interval := int(s.interval / time.Second)
	s.mu.RUnlock()

	snapshots := s.snapshot()
	classification := plant.Classify(snapshots, true)

	// The service sums every reachable plant, idle ones included.
	total := decimal.Zero

	for _, snapshot := range snapshots {
		if snapshot.IsOnline {
			total = total.Add(decimal.NewFromFloat(snapshot.Power))
		}
	}

	state := "inactive"
	if monitoring {
		state = "active"
	}

	c.JSON(http.StatusOK, remote.ServiceStatus{
		Status:         state,
		UpdateInterval: interval,
		Statistics: remote.Statistics{
			TotalPlants:   len(snapshots),
			OnlinePlants:  classification.Aggregate.OnlineCount,
			OfflinePlants: classification.Aggregate.OfflineCount,
			WarningPlants: classification.Aggregate.WarningCount,
			TotalPower:    total.Round(2).InexactFloat64(),
		},
	})
}
