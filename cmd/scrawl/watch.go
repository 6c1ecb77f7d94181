package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/steveyegge/scrawl/internal/daemon"
	"github.com/steveyegge/scrawl/internal/dashboard"
	"github.com/steveyegge/scrawl/internal/render"
	syncpkg "github.com/steveyegge/scrawl/internal/sync"
)

var watchCmd = &cobra.Command{
	Use:   "watch <pdf-file>",
	Short: "Watch a PDF and re-sync on every change",
	Long: `Run an initial sync, then watch the source file and re-sync whenever it
changes. Rapid editor writes are debounced into a single pass.

With --dashboard-port, a WebSocket server broadcasts a sync_complete message
after every pass:

  scrawl watch document.pdf --dashboard-port 8080
  # then connect to ws://localhost:8080/ws

With --log-file, daemon activity goes to a size-rotated log file instead of
stderr.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dashboardPort, _ := cmd.Flags().GetInt("dashboard-port")
		logFile, _ := cmd.Flags().GetString("log-file")
		path := args[0]

		daemonLogger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if logFile != "" {
			daemonLogger.SetOutput(&lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}

		st, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		config := daemon.DefaultConfig()
		config.Logger = daemonLogger

		var server *dashboard.Server
		if dashboardPort > 0 {
			server = dashboard.NewServer(&dashboard.Config{
				Port:   dashboardPort,
				Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
			})
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				os.Exit(1)
			}
			defer server.Stop()
			config.Broadcaster = server

			fmt.Printf("Dashboard: ws://localhost:%d/ws\n", dashboardPort)
		}

		engine := syncpkg.New(st, newEnricher(), newLogger("[sync] "))
		renderer := render.NewPDFRenderer(newLogger("[render] "))

		d, err := daemon.New(path, renderer, engine, config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", path)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().Int("dashboard-port", 0, "Broadcast sync events on a WebSocket dashboard (0 = disabled)")
	watchCmd.Flags().String("log-file", "", "Write daemon logs to a rotated file instead of stderr")
	rootCmd.AddCommand(watchCmd)
}
