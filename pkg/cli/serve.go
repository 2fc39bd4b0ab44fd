package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/getmockd/hashserver/pkg/config"
	"github.com/getmockd/hashserver/pkg/hashserver"
	"github.com/getmockd/hashserver/pkg/logging"
)

// metricsShutdownTimeout bounds the metrics listener shutdown.
const metricsShutdownTimeout = 5 * time.Second

type serveFlags struct {
	port        int
	host        string
	pages       []string
	logLevel    string
	logFormat   string
	logFile     string
	logMaxSize  int
	metricsAddr string
	pidFile     string
	readTimeout time.Duration
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pages until interrupted",
	Long: `Load page files and serve them until SIGINT or SIGTERM.

The port and host default to the values in the page files; flags override
them. ${port} and ${host} in page content and redirect targets are replaced
with the final address.`,
	Example: `  # Serve every page file under testdata
  hashserver serve --pages 'testdata/**/*.yaml' --port 8080

  # Expose Prometheus metrics
  hashserver serve --pages pages.yaml --port 8080 --metrics-addr :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd.OutOrStdout(), &serveFlagVals)
	},
}

func initServeCmd() {
	rootCmd.AddCommand(serveCmd)

	f := &serveFlagVals
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port to listen on (default: port from page files)")
	serveCmd.Flags().StringVar(&f.host, "host", "", "Host to listen on (default: host from page files, then "+hashserver.DefaultHost+")")
	serveCmd.Flags().StringArrayVarP(&f.pages, "pages", "f", nil, "Page file or glob, ** supported (repeatable)")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	serveCmd.Flags().StringVar(&f.logFile, "log-file", "", "Also append logs to this file")
	serveCmd.Flags().IntVar(&f.logMaxSize, "log-max-size", 100, "Rotate the log file after this many megabytes")
	serveCmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Address for the /metrics and /healthz endpoints (disabled when empty)")
	serveCmd.Flags().StringVar(&f.pidFile, "pid-file", "", "Write a PID file for 'hashserver stop'")
	serveCmd.Flags().DurationVar(&f.readTimeout, "read-timeout", hashserver.DefaultReadTimeout, "Maximum time to wait for a request header")
}

// runServe serves until ctx is cancelled.
func runServe(ctx context.Context, out io.Writer, f *serveFlags) error {
	file := &config.File{}
	if len(f.pages) > 0 {
		loaded, err := config.LoadGlob(f.pages...)
		if err != nil {
			return err
		}
		file = loaded
	}

	port, host := resolveAddress(f, file)

	log, closeLog, err := newLogger(f)
	if err != nil {
		return err
	}
	defer closeLog()

	pages, err := file.Pages(host, port)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := hashserver.New(port, pages,
		hashserver.WithHost(host),
		hashserver.WithLogger(log),
		hashserver.WithRegisterer(reg),
		hashserver.WithReadTimeout(f.readTimeout),
	)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	if f.pidFile != "" {
		info := &PIDFile{
			PID:       os.Getpid(),
			StartTime: time.Now(),
			Version:   Version,
			Host:      host,
			Port:      port,
			Pages:     len(pages),
		}
		if err := WritePIDFile(f.pidFile, info); err != nil {
			_ = srv.Stop()
			return err
		}
		defer func() { _ = RemovePIDFile(f.pidFile) }()
	}

	var metricsSrv *http.Server
	if f.metricsAddr != "" {
		metricsSrv = startMetrics(f.metricsAddr, reg, srv, log)
	}

	fmt.Fprintf(out, "%s serving %d pages at %s\n",
		color.GreenString("hashserver"), len(pages), color.CyanString(srv.URL()))
	if metricsSrv != nil {
		fmt.Fprintf(out, "metrics at %s\n", color.CyanString("http://"+f.metricsAddr+"/metrics"))
	}

	<-ctx.Done()
	log.Info("shutting down")

	var errs []error
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
		cancel()
	}
	if err := srv.Stop(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// resolveAddress prefers flags over the page files.
func resolveAddress(f *serveFlags, file *config.File) (int, string) {
	port := f.port
	if port == 0 {
		port = file.Port
	}
	host := f.host
	if host == "" {
		host = file.Host
	}
	if host == "" {
		host = hashserver.DefaultHost
	}
	return port, host
}

func newLogger(f *serveFlags) (*slog.Logger, func(), error) {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(f.logLevel)
	cfg.Format = logging.ParseFormat(f.logFormat)

	closeFn := func() {}
	if f.logFile != "" {
		if info, err := os.Stat(f.logFile); err == nil && info.IsDir() {
			return nil, nil, fmt.Errorf("log file %s is a directory", f.logFile)
		}
		rotating := &lumberjack.Logger{
			Filename:   f.logFile,
			MaxSize:    f.logMaxSize, // megabytes
			MaxBackups: 3,
		}
		cfg.Mirror = rotating
		closeFn = func() { _ = rotating.Close() }
	}
	return logging.New(cfg), closeFn, nil
}

func startMetrics(addr string, reg *prometheus.Registry, srv *hashserver.Server, log *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !srv.IsRunning() {
			http.Error(w, "stopped", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	})

	metricsSrv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return metricsSrv
}
