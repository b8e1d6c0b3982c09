package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sensenets/sensegraph/posts"
)

func publishCmd(configPath, logLevel *string) *cobra.Command {
	var (
		userID   string
		platform string
	)

	cmd := &cobra.Command{
		Use:   "publish <post-id>",
		Short: "Publish a post to a platform",
		Long: `Publish converts the post into a platform draft using the author's
write credentials and posts it. Publishing to the nanopub network
builds a signed nanopublication from the post's semantics; republishing
supersedes the previous one.`,
		Args: cobra.ExactArgs(1),
		RunE: withRuntime(configPath, logLevel, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			postID := args[0]
			pid := posts.PlatformID(platform)
			if err := rt.pipeline.PublishPost(ctx, postID, userID, pid); err != nil {
				return fmt.Errorf("publish post %s to %s: %w", postID, platform, err)
			}
			fmt.Printf("published post %s to %s\n", postID, platform)
			return nil
		}),
	}

	cmd.Flags().StringVar(&userID, "user", "", "App user id")
	cmd.Flags().StringVar(&platform, "platform", "nanopub", "Platform to publish to (nanopub, mastodon, twitter)")

	return cmd
}
