package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/opsync/internal/server"
)

// syncInterval is how often the scheduler wakes up. The item cache's own
// cooldown decides whether a wakeup actually refreshes anything.
const syncInterval = time.Minute

func NewServeCommand(opts *Options) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the sync scheduler",
		Long: `Start the HTTP API the add-on web UI talks to, plus a background
scheduler that runs a sync pass every minute. The scheduler respects the
configured cooldown, so most wakeups are cheap no-ops.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.orchestrator, a.cache, a.reconciler, a.groups, a.items, a.limits, a.logger)
			httpServer := &http.Server{
				Addr:              a.cfg.ListenAddr,
				Handler:           srv.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Infow("listening", "addr", a.cfg.ListenAddr)
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			if !noScheduler {
				go a.runScheduler(ctx)
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Disable the background sync scheduler")

	return cmd
}

// runScheduler runs a sync pass immediately and then once per interval
// until the context is cancelled. Pass failures are logged; the next tick
// retries from scratch.
func (a *app) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	a.schedulerPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.schedulerPass(ctx)
		}
	}
}

func (a *app) schedulerPass(ctx context.Context) {
	if _, err := a.orchestrator.Sync(ctx, false); err != nil {
		a.logger.Errorw("scheduled sync failed", "error", err)
	}
}
