package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/guidematrix/internal/store"
)

// ShowCmd creates the show command.
func ShowCmd(env *Env) *cobra.Command {
	var (
		projectID string
		userID    string
		backend   string
		dataOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "show <project-id> [user-id]",
		Short: "Print a stored analysis",
		Long: `Print the analysis stored for a project and user.

The user id defaults to $USER, as in the analyze command.`,
		Example: `  guidematrix show onc-2026
  guidematrix show onc-2026 alice --data`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID = args[0]
			if len(args) > 1 {
				userID = args[1]
			}
			return runShow(cmd, env, storeKey(env, projectID, userID, ""), backend, dataOnly)
		},
	}

	cmd.Flags().StringVar(&backend, "store", "", "Result store: memory, sqlite, mongo (default from config, else sqlite)")
	cmd.Flags().BoolVar(&dataOnly, "data", false, "Print only the analysis document")
	return cmd
}

func runShow(cmd *cobra.Command, env *Env, key store.Key, backend string, dataOnly bool) error {
	if err := key.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg := loadConfig(env)
	st, err := openStore(ctx, env, cfg, backend)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rec, err := st.Get(ctx, key)
	if err != nil {
		return err
	}

	var v any = rec
	if dataOnly {
		v = rec.Data
	}
	content, err := marshalIndent(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(env.Stdout, content)
	return err
}
