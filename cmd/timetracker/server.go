package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/omatztw/timetracker/internal/api"
	"github.com/omatztw/timetracker/internal/config"
	"github.com/omatztw/timetracker/internal/integrations"
	"github.com/omatztw/timetracker/internal/probe"
	"github.com/omatztw/timetracker/internal/recorder"
	"github.com/omatztw/timetracker/internal/storage"
	"github.com/omatztw/timetracker/internal/uploader"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the timetracker daemon (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running timetracker daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "timetracker.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "timetracker version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		// A broken config file falls back to defaults; say so and keep going.
		printWarning("config problem, continuing with defaults: %v", err)
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Check if a daemon is already running via its health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("timetracker is already running (PID %d)", pid)
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}
		printWarning("timetracker is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("daemon already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Load integrations.
	registry := integrations.NewRegistry(integrations.ConfigPath(cfg.Storage.DataDir), slog.Default())
	report := registry.Load()
	for _, f := range report.Failed {
		slog.Warn("integration failed to load", "name", f.Name, "error", f.Error)
	}

	// Build the recorder around the platform focus probe.
	rec := recorder.New(
		probe.New(slog.Default()),
		store,
		recorder.WithInterval(time.Duration(cfg.Recorder.PollIntervalSeconds)*time.Second),
	)

	handler := api.NewHandler(api.Deps{
		Store:   store,
		Tracker: rec,
		Plugins: registry,
		Token:   cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rec.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return integrations.WatchConfig(gctx, registry, slog.Default())
	})

	if upload := registry.Upload(); upload != nil && upload.Enabled && upload.AutoUpload {
		worker := uploader.New(store, *upload)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
		slog.Info("auto-upload enabled", "interval_minutes", upload.AutoUploadIntervalMinutes)
	}

	g.Go(func() error {
		slog.Info("timetracker listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printWarning("config problem, using defaults: %v", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("timetracker is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop timetracker (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to timetracker (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printWarning("config problem, using defaults: %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)

	resp, err := client.Get(healthURL)
	if err != nil {
		printStatus("Daemon", "stopped")
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Daemon", "unhealthy (status %d)", resp.StatusCode)
		return nil
	}
	printStatus("Daemon", "running on port %d", cfg.Server.Port)

	apiClient := newAPIClient(cfg)

	var tracking map[string]bool
	if resp, err := apiClient.get(context.Background(), "/tracking"); err == nil {
		if err := decodeJSON(resp, &tracking); err == nil {
			state := "paused"
			if tracking["tracking"] {
				state = "tracking"
			}
			printStatus("Tracking", "%s", state)
		}
	}

	var plugins map[string][]string
	if resp, err := apiClient.get(context.Background(), "/plugins"); err == nil {
		if err := decodeJSON(resp, &plugins); err == nil {
			if names := plugins["plugins"]; len(names) > 0 {
				printStatus("Plugins", "%s", strings.Join(names, ", "))
			} else {
				printStatus("Plugins", "none")
			}
		}
	}

	return nil
}
