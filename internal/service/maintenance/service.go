package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain"
	"github.com/vertextoedge/localai-desktop/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// Interval is how often stray temp files are swept
	Interval time.Duration

	// TempFileMaxAge is the age after which a temp file is considered abandoned
	TempFileMaxAge time.Duration

	// RunOnStartup runs a full pass before the first tick
	RunOnStartup bool
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:       10 * time.Minute,
		TempFileMaxAge: 24 * time.Hour,
		RunOnStartup:   true,
	}
}

// Service cleans up after downloads that did not finish
type Service struct {
	config *Config
	repo   port.AcquisitionRepository
	fs     port.FileSystem
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, repo port.AcquisitionRepository, fs port.FileSystem, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 24 * time.Hour
	}

	return &Service{
		config: cfg,
		repo:   repo,
		fs:     fs,
		logger: logger,
	}
}

// RecoverInterrupted fails history rows left active by a previous process.
// Call it before the orchestrator accepts requests.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	n, err := s.repo.MarkInterrupted(ctx, domain.InterruptedReason)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted acquisitions: %w", err)
	}
	if n > 0 {
		s.logger.Info("marked interrupted acquisitions as failed", zap.Int("count", n))
	}
	return n, nil
}

// Start runs the sweep loop until ctx is cancelled or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("temp_file_max_age", s.config.TempFileMaxAge))

	if s.config.RunOnStartup {
		s.cleanupTempFiles()
	}

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupTempFiles()
		}
	}
}

// cleanupTempFiles removes abandoned .downloading files
func (s *Service) cleanupTempFiles() {
	fileCount, err := s.fs.CleanOldTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
	} else if fileCount > 0 {
		s.logger.Info("cleaned up old temp files", zap.Int("count", fileCount))
	}
}
