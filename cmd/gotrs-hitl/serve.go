package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/gotrs-hitl/internal/api"
	"github.com/gotrs-io/gotrs-hitl/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen and expose notifications, alerts and metrics over a local API",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
		d, err := newDaemon(ctx, a)
		if err != nil {
			return err
		}
		defer d.session.Close()

		srv := api.NewServer(api.Options{
			Session:    d.session,
			Alerts:     a.recorder,
			Dispatcher: d.dispatcher,
			Types:      a.types,
			Gatherer:   a.registry,
			Logger:     a.log,
			Version:    version.Version,
		})
		server := a.cfg.Server
		d.extra = append(d.extra, func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, server.GetServerAddr(), server.ReadTimeout, server.WriteTimeout, server.ShutdownTimeout)
		})
		return d.run(ctx)
	}),
}
