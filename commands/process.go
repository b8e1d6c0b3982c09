package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func processCmd(configPath, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <post-id>",
		Short: "Run semantic extraction on a post",
		Long: `Process sends the post's thread content to the upstream parser,
replaces the post's stored triples with the parsed ones, and resolves
reference metadata for linked URLs on the first parse.`,
		Args: cobra.ExactArgs(1),
		RunE: withRuntime(configPath, logLevel, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			postID := args[0]
			if err := rt.pipeline.ParsePost(ctx, postID); err != nil {
				return fmt.Errorf("process post %s: %w", postID, err)
			}
			fmt.Printf("processed post %s\n", postID)
			return nil
		}),
	}
	return cmd
}
