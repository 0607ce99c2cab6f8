package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/designdays/internal/api"
	"github.com/kalambet/designdays/internal/composer"
	"github.com/kalambet/designdays/internal/config"
	"github.com/kalambet/designdays/internal/content"
	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/feedback"
	"github.com/kalambet/designdays/internal/pipeline"
	"github.com/kalambet/designdays/internal/proxy"
	"github.com/kalambet/designdays/internal/ranking"
	"github.com/kalambet/designdays/internal/reload"
	"github.com/kalambet/designdays/internal/samples"
	"github.com/kalambet/designdays/internal/storage"
	"github.com/kalambet/designdays/internal/storage/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the day catalog to an MCP client over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context(), cmd.OutOrStdout())
	},
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// components are the pieces shared by serve and mcp.
type components struct {
	days     *corpus.Aggregator
	feedback *feedback.Service
	store    *storage.Store
	pingers  []api.Pinger
	closers  []io.Closer
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing: %v\n", err)
		}
	}
}

func loadCatalog(path string) (*samples.Catalog, error) {
	if path == "" {
		return samples.Default()
	}
	return samples.LoadFile(path)
}

func buildComponents(ctx context.Context, cfg config.Config) (*components, error) {
	catalog, err := loadCatalog(cfg.Content.SamplesFile)
	if err != nil {
		return nil, fmt.Errorf("loading code samples: %w", err)
	}
	c := &components{
		days: corpus.NewAggregator(content.NewDir(cfg.Content.Dir), catalog),
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	c.store = store
	c.closers = append(c.closers, store)
	c.pingers = append(c.pingers, store)
	if versions, err := store.AppliedMigrations(); err == nil {
		slog.Debug("storage migrated", "data_dir", cfg.Storage.DataDir, "migrations", versions)
	}

	var fb feedback.Store = store
	if cfg.Feedback.Driver == "postgres" {
		pg, err := postgres.Open(ctx, cfg.Feedback.PostgresDSN)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("opening feedback database: %w", err)
		}
		c.closers = append(c.closers, pg)
		c.pingers = append(c.pingers, pg)
		fb = pg
	}
	c.feedback = feedback.NewService(fb)

	slog.Info("components ready",
		"content_dir", cfg.Content.Dir,
		"samples", len(catalog.All()),
		"feedback_driver", cfg.Feedback.Driver,
	)
	return c, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "designdays version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if err := cfg.RequireLLM(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	slog.Info("daily context loaded", "days", len(comps.days.Days(ctx)))

	if interval := config.Duration(cfg.Content.ReloadInterval, 0); interval > 0 {
		worker := reload.NewWorker(cfg.Content.Dir, comps.days, interval)
		if _, err := worker.RunOnce(ctx); err != nil {
			slog.Warn("priming content watcher failed", "error", err)
		}
		go worker.Run(ctx)
	}

	proxyClient := proxy.New(proxy.Options{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Title:   cfg.Site.Name,
	})
	comp := composer.New(composer.SiteInfo{
		Name:        cfg.Site.Name,
		Creator:     cfg.Site.Creator,
		Description: cfg.Site.Description,
	})
	responder := pipeline.NewResponder(comps.days, comp, pipeline.Options{
		Model: cfg.LLM.Model,
		Limits: ranking.Limits{
			BatchSize:       cfg.Chat.BatchSize,
			MaxContinuation: cfg.Chat.MaxContinuation,
		},
	})

	handler := api.NewHandler(api.Deps{
		Responder:   responder,
		Upstream:    proxyClient,
		Days:        comps.days,
		Feedback:    comps.feedback,
		Queries:     comps.store,
		Stores:      comps.pingers,
		AdminToken:  cfg.Server.AdminToken,
		ChatTimeout: config.Duration(cfg.Chat.RequestTimeout, 30*time.Second),
	})
	if cfg.Server.AdminToken == "" {
		slog.Info("admin routes disabled: no admin token configured")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "designdays listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Days:     comps.days,
		Feedback: comps.feedback,
		Version:  version,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	slog.Info("MCP server started (stdio transport)")
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	running := checkHealth(ctx, client, serverURL)
	if running {
		printStatus(w, "Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus(w, "Server", "stopped")
	}

	if running {
		c := &apiClient{baseURL: serverURL, token: cfg.Server.AdminToken, httpClient: client}
		if resp, err := c.get(ctx, "/api/days"); err == nil {
			var days []api.DaySummary
			if decodeJSON(resp, &days) == nil {
				printStatus(w, "Days", "%d", len(days))
			}
		}
		if resp, err := c.get(ctx, "/api/categories"); err == nil {
			var cats []string
			if decodeJSON(resp, &cats) == nil {
				printStatus(w, "Categories", "%s", strings.Join(cats, ", "))
			}
		}
	}

	printStatus(w, "Content dir", "%s", cfg.Content.Dir)
	printStatus(w, "Data dir", "%s", cfg.Storage.DataDir)
	printStatus(w, "Feedback", "%s", cfg.Feedback.Driver)
	upstream := proxy.New(proxy.Options{APIKey: cfg.LLM.APIKey, BaseURL: cfg.LLM.BaseURL, Title: cfg.Site.Name})
	printStatus(w, "Model", "%s at %s", cfg.LLM.Model, upstream.BaseURL())
	if cfg.RequireLLM() != nil {
		printStatus(w, "LLM key", "%s", colorize(colorYellow, "missing"))
		return nil
	}
	printStatus(w, "LLM key", "configured")

	upCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	printStatus(w, "Upstream", "%s", checkUpstream(upCtx, upstream, cfg.LLM.Model))
	return nil
}

// modelLister is the part of the LLM client status needs.
type modelLister interface {
	ListModels(ctx context.Context) ([]proxy.Model, error)
}

// checkUpstream reports whether the API answers and offers model.
func checkUpstream(ctx context.Context, l modelLister, model string) string {
	models, err := l.ListModels(ctx)
	if err != nil {
		return colorize(colorRed, fmt.Sprintf("unreachable (%v)", err))
	}
	for _, m := range models {
		if m.ID == model {
			return fmt.Sprintf("reachable, %s available", model)
		}
	}
	return colorize(colorYellow, fmt.Sprintf("reachable, %s not listed (%d models)", model, len(models)))
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
