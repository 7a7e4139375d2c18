package localmodel

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StartupTimeout is how long Start waits for the server to accept connections.
const StartupTimeout = 30 * time.Second

// Supervisor owns the model server process.
type Supervisor struct {
	python     string
	scriptsDir string
	port       int
	logger     *zap.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewSupervisor creates a supervisor that runs `<python> <scriptsDir>/model_server.py <port>`.
func NewSupervisor(python, scriptsDir string, port int, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if python == "" {
		python = "python3"
	}
	if port == 0 {
		port = 8765
	}
	return &Supervisor{python: python, scriptsDir: scriptsDir, port: port, logger: logger}
}

// URL is the base URL of the supervised server.
func (s *Supervisor) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// Running reports whether the process is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Start spawns the server unless it is already running and waits for its port to open.
// A server that is still loading after StartupTimeout is left running and Start returns nil.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return nil
	}
	script := filepath.Join(s.scriptsDir, "model_server.py")
	cmd := exec.Command(s.python, script, strconv.Itoa(s.port))
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start model server: %w", err)
	}
	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	s.mu.Unlock()

	s.logger.Info("model server starting", zap.String("script", script), zap.Int("port", s.port))
	go func() {
		err := cmd.Wait()
		s.logger.Info("model server exited", zap.Error(err))
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	addr := net.JoinHostPort("localhost", strconv.Itoa(s.port))
	deadline := time.NewTimer(StartupTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			s.logger.Info("model server ready", zap.Int("port", s.port))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return fmt.Errorf("model server exited during startup")
		case <-deadline.C:
			s.logger.Warn("model server startup timeout, continuing", zap.Duration("waited", StartupTimeout))
			return nil
		case <-tick.C:
		}
	}
}

// Stop kills the server process if it is running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd = nil
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	s.logger.Info("stopping model server")
	_ = cmd.Process.Kill()
	if done != nil {
		<-done
	}
}
