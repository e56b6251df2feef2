package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/internal/config"
	"github.com/gotrs-io/gotrs-hitl/internal/realtime"
	"github.com/gotrs-io/gotrs-hitl/internal/scheduler"
	"github.com/gotrs-io/gotrs-hitl/internal/session"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print HITL requests for the selected organization as they arrive",
	Long: `Listen connects to the live channel and prints every HITL notification
and claim offer. Claim an offered conversation with "gotrs-hitl claim <id>".`,
	Args: cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
		d, err := newDaemon(ctx, a)
		if err != nil {
			return err
		}
		defer d.session.Close()
		return d.run(ctx)
	}),
}

// daemon is the long-running part shared by listen and serve
type daemon struct {
	app        *app
	conn       *realtime.Connection
	session    *session.Session
	dispatcher *alerts.Dispatcher
	scheduler  *scheduler.Scheduler
	extra      []func(ctx context.Context) error
}

func newDaemon(ctx context.Context, a *app) (*daemon, error) {
	orgID := a.organization()
	if orgID == 0 {
		return nil, fmt.Errorf("no organization selected (use --org or organization.id)")
	}

	conn, err := a.connection()
	if err != nil {
		return nil, err
	}
	coord := a.coordinator()
	sess := a.newSession(coord)

	memberships, err := a.memberships(ctx)
	if err != nil {
		a.log.Warn("initial memberships lookup failed, waiting for refresh", zap.Error(err))
	}
	sess.SetMemberships(memberships)
	sess.SetOrganization(orgID)
	sess.SetConnection(conn)

	if !sess.Permissions().CanReceiveHitlNotifications {
		a.log.Warn("no HITL role in this organization, notifications stay off until it is granted",
			zap.Int64("organization_id", orgID))
	}

	sched := scheduler.New(scheduler.WithLogger(a.log))
	if err := sched.AddMembershipRefresh(a.cfg.Scheduler.MembershipRefresh,
		scheduler.MembershipSourceFunc(a.memberships),
		func(m []types.Membership) { sess.SetMemberships(m) }); err != nil {
		return nil, err
	}

	// organization.id edits switch the binding unless --org pins it
	a.cfgs.OnChange(func(old, updated *config.Config) {
		if orgFlag > 0 || updated.Organization.ID == old.Organization.ID || updated.Organization.ID <= 0 {
			return
		}
		a.log.Info("organization changed", zap.Int64("from", old.Organization.ID), zap.Int64("to", updated.Organization.ID))
		sess.SetOrganization(updated.Organization.ID)
	})
	a.cfgs.Watch()

	return &daemon{
		app:        a,
		conn:       conn,
		session:    sess,
		dispatcher: &alerts.Dispatcher{Navigator: a.navigator(), Claimer: coord},
		scheduler:  sched,
	}, nil
}

func (d *daemon) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.conn.KeepAlive(ctx)
		return nil
	})
	g.Go(func() error {
		return d.scheduler.Run(ctx)
	})
	for _, fn := range d.extra {
		fn := fn
		g.Go(func() error { return fn(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		if err := d.conn.Close(); err != nil {
			d.app.log.Debug("closing live channel", zap.Error(err))
		}
		return nil
	})

	d.app.log.Info("hitl client running", zap.Int64("organization_id", d.session.OrganizationID()))
	return g.Wait()
}
