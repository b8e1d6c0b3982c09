package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensenets/sensegraph/posts"
)

func fetchCmd(configPath, logLevel *string) *cobra.Command {
	var (
		userID   string
		platform string
		amount   int
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch new posts from a platform account",
		Long: `Fetch pulls recent posts for one of the user's platform accounts,
creates canonical posts for the threads not seen before, and runs
semantic extraction on each new post.`,
		RunE: withRuntime(configPath, logLevel, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			pid := posts.PlatformID(platform)
			if pid != posts.PlatformMastodon && pid != posts.PlatformTwitter {
				return fmt.Errorf("unsupported fetch platform %q", platform)
			}
			if err := rt.pipeline.FetchAndProcess(ctx, userID, pid, amount); err != nil {
				return fmt.Errorf("fetch %s posts for %s: %w", platform, userID, err)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&userID, "user", "", "App user id")
	cmd.Flags().StringVar(&platform, "platform", "mastodon", "Platform to fetch from (mastodon, twitter)")
	cmd.Flags().IntVar(&amount, "amount", 10, "Number of threads to fetch")

	return cmd
}
