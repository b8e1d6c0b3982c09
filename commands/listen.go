package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensenets/sensegraph/posts"
)

func listenCmd(configPath, logLevel *string) *cobra.Command {
	var (
		userID   string
		platform string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream a platform account's new posts as they appear",
		Long: `Listen subscribes to a platform's streaming API for one of the
user's accounts and ingests each new thread as it is posted, running
semantic extraction on every post not seen before. It runs until
interrupted.`,
		RunE: withRuntime(configPath, logLevel, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			err := rt.pipeline.Listen(ctx, userID, posts.PlatformID(platform))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}),
	}

	cmd.Flags().StringVar(&userID, "user", "", "App user id")
	cmd.Flags().StringVar(&platform, "platform", "mastodon", "Platform to stream from")

	return cmd
}
