// Command workforced is the Workforce server process: Component H
// (bootstrap, PID file, start lock, graceful shutdown) wiring together the
// Server Registry (G) and Transport Adapter (F).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/workforce-hq/workforce/internal/config"
	"github.com/workforce-hq/workforce/internal/registry"
	"github.com/workforce-hq/workforce/internal/transport"
)

const lockStaleAfter = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "workforced: load config:", err)
		return 1
	}

	logger, err := newLogger(cfg.LogDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "workforced: init logger:", err)
		return 1
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Errorw("failed to create data dir", "path", cfg.DataDir, "error", err)
		return 1
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		logger.Errorw("failed to create cache dir", "path", cfg.CacheDir, "error", err)
		return 1
	}

	if !cfg.SkipLock {
		if err := acquireStartLock(cfg.LockFile()); err != nil {
			logger.Errorw("could not acquire start lock", "error", err)
			return 1
		}
		defer os.Remove(cfg.LockFile())

		if alive, pid := existingServerAlive(cfg.PIDFile()); alive {
			logger.Errorw("a workforce server is already running", "pid", pid, "pid_file", cfg.PIDFile())
			return 1
		}
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		logger.Errorw("failed to bind", "host", cfg.Host, "port", cfg.Port, "error", err)
		return 1
	}

	if err := writePIDFile(cfg.PIDFile(), cfg.Host, cfg.Port); err != nil {
		logger.Errorw("failed to write pid file", "error", err)
		return 1
	}
	defer os.Remove(cfg.PIDFile())

	reg := registry.New(cfg.CacheDir, cfg.EventLogPath, cfg.EventLogCapByte, logger)

	router := mux.NewRouter()
	svc := transport.NewService(reg, logger, cfg.Host, cfg.Port)
	svc.LoadRoutes(router)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Idempotency-Key", "X-Request-ID"}),
	)(router)

	srv := &http.Server{Handler: corsHandler}

	groupCtx, stopGroup := context.WithCancel(context.Background())
	defer stopGroup()
	group, gctx := errgroup.WithContext(groupCtx)

	group.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		reg.CycleCache(cfg.CacheMaxAge, cfg.CacheMaxBytes)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := reg.CycleCache(cfg.CacheMaxAge, cfg.CacheMaxBytes); err != nil {
					logger.Warnw("cache cycling failed", "error", err)
				}
			}
		}
	})

	group.Go(func() error {
		logger.Infow("workforce server listening", "host", cfg.Host, "port", cfg.Port)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Infow("shutdown signal received", "signal", sig)
	case <-gctx.Done():
		logger.Errorw("server goroutine exited", "error", gctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("graceful http shutdown failed", "error", err)
		srv.Close()
	}

	reg.ShutdownAll()

	stopGroup()
	if err := group.Wait(); err != nil && err != http.ErrServerClosed {
		logger.Errorw("server error", "error", err)
		return 1
	}
	return 0
}

func newLogger(logDir string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, err
		}
		logPath := filepath.Join(logDir, "server.log")
		cfg.OutputPaths = []string{logPath, "stdout"}
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// acquireStartLock implements §4.H's exclusive create-if-not-exists lock,
// treating a lockfile older than lockStaleAfter as abandoned.
func acquireStartLock(path string) error {
	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) > lockStaleAfter {
			os.Remove(path)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("start lock held: %w", err)
	}
	return f.Close()
}

// existingServerAlive reports whether pidPath names a PID that is still a
// live process (§4.H, "if a PID file exists and names an alive PID, exit").
func existingServerAlive(pidPath string) (bool, int) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false, 0
	}
	var host string
	var pid int
	_, _ = fmt.Sscanf(string(data), "%s\n%d", &host, &pid)
	if pid == 0 {
		return false, 0
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without affecting the process.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false, 0
	}
	return true, pid
}

func writePIDFile(path, host string, port int) error {
	content := fmt.Sprintf("%s:%d\n%d\n", host, port, os.Getpid())
	return os.WriteFile(path, []byte(content), 0o644)
}
