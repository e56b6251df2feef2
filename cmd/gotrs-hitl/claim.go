package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/gotrs-hitl/internal/assignment"
	sdkerrors "github.com/gotrs-io/gotrs-hitl/sdk/errors"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

var claimCmd = &cobra.Command{
	Use:   "claim <conversation-id>",
	Short: "Claim a conversation for yourself",
	Long: `Claim asks the server to assign the conversation to you. When another
HITL user was faster the command reports it and exits with status 2.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runClaim),
}

var reassignCmd = &cobra.Command{
	Use:   "reassign <conversation-id> <user-id>",
	Short: "Hand a conversation to another HITL user",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runReassign),
}

// errLostRace is returned when the conversation belongs to someone else
var errLostRace = errors.New("conversation already assigned")

func runClaim(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	outcome := a.coordinator().HandleAutoAssignment(ctx, types.ConversationID(args[0]))
	if jsonOut {
		if err := printJSON(map[string]string{"outcome": string(outcome)}); err != nil {
			return err
		}
	}
	switch outcome {
	case assignment.OutcomeSuccess:
		return nil
	case assignment.OutcomeAlreadyAssigned:
		return errLostRace
	default:
		return errReported
	}
}

func runReassign(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	userID, err := parseID("user id", args[1])
	if err != nil {
		return err
	}
	err = a.client.Conversations.ReassignHitl(ctx, types.ConversationID(args[0]), userID)
	switch {
	case err == nil:
		fmt.Printf("conversation %s handed to user %d\n", args[0], userID)
		return nil
	case sdkerrors.IsAlreadyAssigned(err):
		return errLostRace
	default:
		return fmt.Errorf("reassign failed: %w", err)
	}
}
