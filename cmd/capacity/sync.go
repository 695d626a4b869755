package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/capacity-engine/syncer"
)

func newSyncCmd(configPath *string) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror projects and users from the issue tracker once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return runSync(cmd.Context(), a.sync, only)
		},
	}

	cmd.Flags().StringVar(&only, "only", "", `Limit the run to "projects" or "users"`)
	return cmd
}

func runSync(ctx context.Context, s *syncer.Service, only string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.Configured() {
		return fmt.Errorf("jira is not configured: set jira.url, jira.email and jira.api_token")
	}

	var results []syncer.Result
	var err error
	switch only {
	case "":
		results, err = s.SyncAll(ctx)
	case "projects":
		var r syncer.Result
		r, err = s.SyncProjects(ctx)
		results = []syncer.Result{r}
	case "users":
		var r syncer.Result
		r, err = s.SyncUsers(ctx)
		results = []syncer.Result{r}
	default:
		return fmt.Errorf("--only must be projects or users, got %q", only)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(results); encErr != nil {
		return encErr
	}
	return err
}
