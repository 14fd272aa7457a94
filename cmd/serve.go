package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nealabq/heatwave/internal/persist"
	"github.com/nealabq/heatwave/internal/session"
)

var (
	serverAddr      string
	serverPort      int
	serveDataDir    string
	serveCPUProfile string
	serveMemProfile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for interactive solve sessions",
	Long: `Starts an HTTP server that accepts solve sessions via REST API.
Sessions are stepped on demand and progress can be monitored via SSE or
status endpoints.`,
	RunE: runServer,
}

func init() {
	serveCmd.Flags().StringVar(&serverAddr, "addr", "localhost", "Server bind address")
	serveCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Checkpoint base directory; empty disables checkpoint-on-shutdown")

	serveCmd.Flags().StringVar(&serveCPUProfile, "cpuprofile", "", "Write CPU profile to file")
	serveCmd.Flags().StringVar(&serveMemProfile, "memprofile", "", "Write memory profile to file on shutdown")

	rootCmd.AddCommand(serveCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	if serveCPUProfile != "" {
		f, err := os.Create(serveCPUProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", serveCPUProfile)
	}

	addr := fmt.Sprintf("%s:%d", serverAddr, serverPort)

	var store persist.Store
	if serveDataDir != "" {
		fsStore, err := persist.NewFSStore(serveDataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		store = fsStore
	}

	srv := session.NewServer(addr, store)

	slog.Info("starting heatwave server", "addr", addr)
	fmt.Printf("Server listening on http://%s\n", addr)
	fmt.Println("API endpoints:")
	fmt.Println("  POST   /api/v1/sessions                 - Create new session")
	fmt.Println("  GET    /api/v1/sessions                  - List all sessions")
	fmt.Println("  GET    /api/v1/sessions/:id/status        - Get session status")
	fmt.Println("  POST   /api/v1/sessions/:id/solve         - Run N passes")
	fmt.Println("  POST   /api/v1/sessions/:id/cancel        - Cancel between passes")
	fmt.Println("  GET    /api/v1/sessions/:id/stream        - SSE progress stream")
	fmt.Println("  GET    /api/v1/sessions/:id/snapshot.json - Current sheet as flat JSON")
	fmt.Println("\nPress Ctrl+C to shutdown")

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		if serveMemProfile != "" {
			f, err := os.Create(serveMemProfile)
			if err != nil {
				return fmt.Errorf("failed to create memory profile: %w", err)
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			slog.Info("memory profile written", "output", serveMemProfile)
		}

		fmt.Println("Server stopped gracefully")
	}

	return nil
}
