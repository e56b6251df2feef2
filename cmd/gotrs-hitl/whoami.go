package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/gotrs-hitl/internal/permissions"
	"github.com/gotrs-io/gotrs-hitl/sdk/auth"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show your organization roles and HITL permissions",
	Args:  cobra.NoArgs,
	RunE:  withApp(runWhoami),
}

func runWhoami(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	memberships, err := a.memberships(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memberships: %w", err)
	}
	orgID := a.organization()
	snap := permissions.Resolve(orgID, memberships)

	if jsonOut {
		return printJSON(map[string]interface{}{
			"memberships":    memberships,
			"organizationId": orgID,
			"role":           permissions.EffectiveRole(orgID, memberships),
			"permissions":    snap,
		})
	}

	if jwtAuth, ok := a.client.Authenticator().(*auth.JWTAuth); ok {
		if claims, err := auth.ParseClaims(jwtAuth.Token()); err == nil {
			fmt.Printf("user:  %s (#%d)\n", claims.Email, claims.UserID)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORGANIZATION\tROLE")
	for _, m := range memberships {
		fmt.Fprintf(w, "%d\t%s\n", m.OrganizationID, m.Role)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if orgID == 0 {
		fmt.Println("\nno organization selected (use --org or organization.id)")
		return nil
	}
	fmt.Printf("\norganization %d: role %s\n", orgID, permissions.EffectiveRole(orgID, memberships))
	fmt.Printf("  manage hitl types:    %t\n", snap.CanManageHitlTypes)
	fmt.Printf("  receive hitl alerts:  %t\n", snap.CanReceiveHitlNotifications)
	return nil
}
