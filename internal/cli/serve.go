// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-credstore/internal/rest"
	"github.com/jeremyhahn/go-credstore/pkg/adapters/logger"
	"github.com/jeremyhahn/go-credstore/pkg/metrics"
	"github.com/jeremyhahn/go-credstore/pkg/ratelimit"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credential store HTTP API",
	Long: `Start the HTTP API over the configured storage backend. The server
shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(getConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		metricsPath := ""
		if rt.cfg.Metrics.Enabled {
			metricsPath = rt.cfg.Metrics.Path
			metrics.Enable()
		}

		var limiter *ratelimit.Limiter
		if rt.cfg.RateLimit.Enabled {
			limiter = ratelimit.New(&ratelimit.Config{
				Enabled:           true,
				RequestsPerMinute: rt.cfg.RateLimit.RequestsPerMinute,
				Burst:             rt.cfg.RateLimit.Burst,
			})
			defer limiter.Stop()
		}

		srv, err := rest.NewServer(&rest.Config{
			Host:          rt.cfg.Server.Host,
			Port:          rt.cfg.Server.Port,
			Manager:       rt.manager,
			Version:       Version,
			MetricsPath:   metricsPath,
			UnlockLimiter: limiter,
			Logger:        rt.log,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if rt.cfg.Metrics.Enabled {
			collector := metrics.StartResourceCollector(ctx, 15*time.Second)
			collector.SetCacheSizeFunc(rt.manager.CachedUserCount)
			defer collector.Stop()
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return err
		}

		rt.log.Info("Server stopped successfully", logger.String("addr", srv.Addr()))
		return nil
	},
}
