package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// errReported is returned after the failure was already shown as an alert
var errReported = errors.New("operation failed")

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Manage the HITL types of an organization",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var typesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List HITL types with their status",
	Args:  cobra.NoArgs,
	RunE:  withApp(runTypesList),
}

var typesGetCmd = &cobra.Command{
	Use:   "get <type-id>",
	Short: "Show one HITL type and its assigned users",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runTypesGet),
}

var typesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a HITL type",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runTypesCreate),
}

var typesUpdateCmd = &cobra.Command{
	Use:   "update <type-id>",
	Short: "Rename or re-describe a HITL type",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runTypesUpdate),
}

var typesDeleteCmd = &cobra.Command{
	Use:   "delete <type-id>",
	Short: "Delete a HITL type (requires --yes)",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runTypesDelete),
}

var typesAssignCmd = &cobra.Command{
	Use:   "assign <type-id> <user-id>...",
	Short: "Assign HITL users to a type",
	Args:  cobra.MinimumNArgs(2),
	RunE:  withApp(runTypesAssign),
}

var typesUnassignCmd = &cobra.Command{
	Use:   "unassign <type-id> <user-id>",
	Short: "Remove a user from a type",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runTypesUnassign),
}

var (
	descriptionFlag string
	nameFlag        string
	yesFlag         bool
)

func init() {
	typesCreateCmd.Flags().StringVar(&descriptionFlag, "description", "", "type description")
	typesUpdateCmd.Flags().StringVar(&nameFlag, "name", "", "new name")
	typesUpdateCmd.Flags().StringVar(&descriptionFlag, "description", "", "new description")
	typesDeleteCmd.Flags().BoolVar(&yesFlag, "yes", false, "confirm the deletion")

	typesCmd.AddCommand(typesListCmd)
	typesCmd.AddCommand(typesGetCmd)
	typesCmd.AddCommand(typesCreateCmd)
	typesCmd.AddCommand(typesUpdateCmd)
	typesCmd.AddCommand(typesDeleteCmd)
	typesCmd.AddCommand(typesAssignCmd)
	typesCmd.AddCommand(typesUnassignCmd)
}

// withApp builds the app for a command and closes it afterwards
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd.Context(), a, cmd, args)
	}
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", kind, s)
	}
	return id, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runTypesList(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
	list := a.types.ListTypes(ctx, a.organization())
	if jsonOut {
		return printJSON(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUSERS\tDESCRIPTION")
	for _, t := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", t.ID, t.Name, t.Status(), len(t.UserHitlTypes), t.Description)
	}
	return w.Flush()
}

func runTypesGet(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	typeID, err := parseID("type id", args[0])
	if err != nil {
		return err
	}
	t := a.types.GetType(ctx, a.organization(), typeID)
	if t == nil {
		return errReported
	}
	if jsonOut {
		return printJSON(t)
	}
	printType(t)
	return nil
}

func printType(t *types.HitlType) {
	fmt.Printf("%s (#%d) %s\n", t.Name, t.ID, t.Status())
	if t.Description != "" {
		fmt.Printf("  %s\n", t.Description)
	}
	users := t.AssignedUsers()
	if len(users) == 0 {
		fmt.Println("  no users assigned")
		return
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, fmt.Sprintf("%s (#%d)", u.DisplayName(), u.ID))
	}
	fmt.Printf("  users: %s\n", strings.Join(names, ", "))
}

func runTypesCreate(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	t := a.types.CreateType(ctx, a.organization(), args[0], descriptionFlag)
	if t == nil {
		return errReported
	}
	if jsonOut {
		return printJSON(t)
	}
	printType(t)
	return nil
}

func runTypesUpdate(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	typeID, err := parseID("type id", args[0])
	if err != nil {
		return err
	}
	var update types.HitlTypeUpdateRequest
	if cmd.Flags().Changed("name") {
		update.Name = &nameFlag
	}
	if cmd.Flags().Changed("description") {
		update.Description = &descriptionFlag
	}
	if update.Name == nil && update.Description == nil {
		return errors.New("nothing to update: pass --name and/or --description")
	}

	t := a.types.UpdateType(ctx, a.organization(), typeID, update)
	if t == nil {
		return errReported
	}
	if jsonOut {
		return printJSON(t)
	}
	printType(t)
	return nil
}

func runTypesDelete(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	typeID, err := parseID("type id", args[0])
	if err != nil {
		return err
	}
	if !yesFlag {
		return fmt.Errorf("refusing to delete type %d without --yes", typeID)
	}
	if !a.types.DeleteType(ctx, a.organization(), typeID) {
		return errReported
	}
	return nil
}

func runTypesAssign(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	typeID, err := parseID("type id", args[0])
	if err != nil {
		return err
	}
	userIDs := make([]int64, 0, len(args)-1)
	for _, arg := range args[1:] {
		id, err := parseID("user id", arg)
		if err != nil {
			return err
		}
		userIDs = append(userIDs, id)
	}
	if !a.types.AssignUsers(ctx, a.organization(), typeID, userIDs) {
		return errReported
	}
	return nil
}

func runTypesUnassign(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
	typeID, err := parseID("type id", args[0])
	if err != nil {
		return err
	}
	userID, err := parseID("user id", args[1])
	if err != nil {
		return err
	}
	if !a.types.RemoveUser(ctx, a.organization(), typeID, userID) {
		return errReported
	}
	return nil
}
