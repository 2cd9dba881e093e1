package main

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nonfou/mpayctl/internal/api"
	"github.com/nonfou/mpayctl/internal/session"
)

// usersRoute is the access requirement of the admin user list.
var usersRoute = session.RouteMeta{RequiresAuth: true, RequiresAdmin: true}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List backend accounts (administrators only)",
		RunE:  runUsers,
	}

	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("page-size", 20, "accounts per page")

	return cmd
}

// usersOutput is the JSON schema for `users --json`.
type usersOutput struct {
	Page  int64      `json:"page"`
	Total int64      `json:"total"`
	Items []api.User `json:"items"`
}

func runUsers(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	page, err := cmd.Flags().GetInt("page")
	if err != nil {
		return err
	}

	pageSize, err := cmd.Flags().GetInt("page-size")
	if err != nil {
		return err
	}

	if page < 1 || pageSize < 1 {
		return fmt.Errorf("--page and --page-size must be positive")
	}

	cs, err := NewConsoleSession(ctx, cc)
	if err != nil {
		return err
	}
	defer cs.Close()

	if !cs.Ctrl.Store().IsAuthenticated() {
		return errNotLoggedIn
	}

	// The admin check needs the profile.
	if _, err := cs.Ctrl.FetchCurrentUser(ctx); err != nil {
		return fmt.Errorf("fetching user profile: %w", err)
	}

	if err := cs.Ctrl.Authorize(usersRoute); err != nil {
		return err
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var result api.Page[api.User]
	if err := cs.Ctrl.Pipeline().GetJSON(ctx, api.PathUsers+"?"+q.Encode(), &result); err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	slices.SortFunc(result.Items, func(a, b api.User) int {
		return cmp.Compare(a.UserID(), b.UserID())
	})

	if cc.Flags.JSON {
		return printJSON(cc.Out, usersOutput{Page: result.Page, Total: result.Total, Items: result.Items})
	}

	if len(result.Items) == 0 {
		cc.Statusf("No accounts.\n")
		return nil
	}

	rows := make([][]string, 0, len(result.Items))
	for _, u := range result.Items {
		rows = append(rows, []string{
			strconv.FormatInt(u.UserID(), 10),
			u.Username,
			u.Email,
			labelOr(u.RoleName, u.Role),
			labelOr(u.StateName, u.State),
		})
	}

	printTable(cc.Out, []string{"ID", "USERNAME", "EMAIL", "ROLE", "STATE"}, rows)
	cc.Statusf("Page %d, %d of %d accounts.\n", result.Page, len(result.Items), result.Total)

	return nil
}

func labelOr(name string, n int) string {
	if name != "" {
		return name
	}

	return strconv.Itoa(n)
}
