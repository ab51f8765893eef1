package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/freekieb7/foldserve/browse"
	"github.com/freekieb7/foldserve/config"
	"github.com/freekieb7/foldserve/filesystem"
	"github.com/freekieb7/foldserve/http"
	"github.com/freekieb7/foldserve/telemetry"
)

const name = "foldserve"

var version = "dev"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          name,
		Short:        "Serve a directory as a browsable tree over HTTP",
		Long:         "foldserve lists the files and folders of a directory as HTML pages and serves text files as plain text.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	config.RegisterFlags(cmd.Flags())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the foldserve version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, version)
		},
	})

	return cmd
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		// ctx is already done here
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "telemetry shutdown:", err)
		}
	}()

	logger := telemetry.NewLogger(os.Stderr, cfg.Debug, cfg.Telemetry.Enabled())

	fs, err := filesystem.NewLocalFileSystem(cfg.Root)
	if err != nil {
		return err
	}
	defer fs.Close()

	tracing, err := http.TracingMiddleware(telemetry.Name)
	if err != nil {
		return err
	}

	resolver := browse.NewResolver(fs, cfg.IOTimeout, logger)

	router := newRouter(resolver.Handle, tracing)

	server := http.NewServer(name, router.Handler(), logger)
	server.Workers = cfg.Workers
	server.ReadTimeout = cfg.ReadTimeout
	server.WriteTimeout = cfg.WriteTimeout
	server.MaxHeaderBytes = cfg.MaxHeaderBytes
	if cfg.RateLimit > 0 {
		server.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	banner(stdout, cfg)
	logger.Debug("server configured",
		"workers", cfg.Workers,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"io_timeout", cfg.IOTimeout,
		"max_header_bytes", cfg.MaxHeaderBytes,
	)

	if err := server.ListenAndServe(ctx, cfg.Address()); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

// newRouter sends every GET and POST to handler. Later middleware wraps
// earlier, so a recovered panic is still traced and logged as a 500.
func newRouter(handler http.Handler, tracing http.Middleware) http.Router {
	router := http.NewRouter()
	router.Middleware = append(router.Middleware, http.RecoverMiddleware(), tracing, http.LoggingMiddleware())
	router.GET("/*", handler)
	router.POST("/*", handler)

	return router
}

func banner(w io.Writer, cfg *config.Config) {
	bold := color.New(color.Bold)
	link := color.New(color.FgCyan, color.Underline)

	bold.Fprintf(w, "Serving %s\n", cfg.Root)
	fmt.Fprint(w, "Listening on ")
	link.Fprintf(w, "http://%s/\n", cfg.Address())
}
