// Package server parses Toolscope server configuration and runs the process.
package server

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/louisbranch/toolscope/internal/platform/config"
	"github.com/louisbranch/toolscope/internal/platform/otel"
	mcpservice "github.com/louisbranch/toolscope/internal/services/mcp/service"
	"github.com/louisbranch/toolscope/internal/services/web"
	"github.com/louisbranch/toolscope/internal/storage/sqlite"
	"github.com/louisbranch/toolscope/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// snapshotFile is the analytics snapshot document inside the data dir.
	snapshotFile = "analytics.json"
	// auditFile is the durable tool-call journal inside the data dir.
	auditFile = "audit.db"
	// shutdownTimeout bounds the final telemetry flush at exit.
	shutdownTimeout = 5 * time.Second
)

// Config holds Toolscope server configuration.
type Config struct {
	HTTPAddr  string `env:"TOOLSCOPE_HTTP_ADDR"     envDefault:"localhost:8080"`
	Transport string `env:"TOOLSCOPE_MCP_TRANSPORT" envDefault:"http"`
	DataDir   string `env:"TOOLSCOPE_DATA_DIR"      envDefault:"data"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "MCP transport: stdio or http")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for telemetry state")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the Toolscope server and blocks until the context ends or a
// component fails.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport != "stdio" && cfg.Transport != "http" {
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	shutdown, err := otel.Setup(ctx, "toolscope")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	// A failed audit store is a degraded journal, not a failed startup.
	audit, err := sqlite.Open(filepath.Join(cfg.DataDir, auditFile))
	if err != nil {
		log.Printf("audit store unavailable, continuing without it: %v", err)
		audit = nil
	}
	defer func() {
		if err := audit.Close(); err != nil {
			log.Printf("close audit store: %v", err)
		}
	}()

	opts := []telemetry.Option{}
	if audit != nil {
		opts = append(opts, telemetry.WithAuditor(audit))
	}
	engine := telemetry.NewEngine(telemetry.NewFileStore(filepath.Join(cfg.DataDir, snapshotFile)), opts...)
	engine.Start(ctx)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := engine.Shutdown(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	mcpServer, err := mcpservice.New(engine)
	if err != nil {
		return err
	}

	webCfg := web.Config{Addr: cfg.HTTPAddr}
	if audit != nil {
		webCfg.Audit = audit
	}
	if cfg.Transport == "http" {
		webCfg.MCPHandler = mcpServer.HTTPHandler()
	}
	webServer := web.New(webCfg, engine)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return webServer.Start(groupCtx)
	})
	if cfg.Transport == "stdio" {
		group.Go(func() error {
			return mcpServer.Serve(groupCtx)
		})
	}

	return group.Wait()
}
