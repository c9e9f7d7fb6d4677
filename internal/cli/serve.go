package cli

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/api"
)

// newServeCmd creates the serve command.
func newServeCmd(a *app) *cobra.Command {
	var (
		addr      string
		noMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		Example: `  carbonscope serve
  carbonscope serve --addr 0.0.0.0:9090 --no-metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}

			var opts []api.Option
			if a.cfg.Server.MetricsEnabled && !noMetrics {
				opts = append(opts, api.WithMetrics(api.NewMetrics()))
			}
			handler := api.NewRouter(e, a.baseLogger, opts...)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}
			cmd.Printf("Serving on http://%s\n", ln.Addr())
			return api.Serve(ctx, api.NewServer(addr, handler), ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")

	return cmd
}
