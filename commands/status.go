package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/semantics"
	"github.com/sensenets/sensegraph/store"
)

func statusCmd(configPath, logLevel *string) *cobra.Command {
	var showTriples bool

	cmd := &cobra.Command{
		Use:   "status <post-id>",
		Short: "Show a post, its mirrors and its triples",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(configPath, logLevel, func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error {
			postID := args[0]

			var (
				post    *posts.AppPostFull
				triples []semantics.Triple
			)
			err := rt.manager.Run(ctx, func(tx *store.Txn) error {
				var err error
				post, err = rt.processing.GetPostFull(ctx, tx, postID, true)
				if err != nil {
					return err
				}
				triples, err = semantics.NewRepo().GetOfPost(ctx, tx, postID)
				return err
			})
			if err != nil {
				return fmt.Errorf("load post %s: %w", postID, err)
			}

			printPost(post, triples, showTriples)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&showTriples, "triples", false, "Print the post's stored triples")

	return cmd
}

func printPost(post *posts.AppPostFull, triples []semantics.Triple, showTriples bool) {
	created := time.UnixMilli(post.CreatedAtMs).UTC().Format(time.RFC3339)

	fmt.Printf("Post %s\n", post.ID)
	fmt.Printf("  author:      %s (@%s)\n", post.AuthorProfileID, post.Generic.Author.Username)
	fmt.Printf("  origin:      %s\n", post.Origin)
	fmt.Printf("  created:     %s\n", created)
	fmt.Printf("  parsing:     %s / %s\n", post.ParsingStatus, post.ParsedStatus)
	fmt.Printf("  review:      %s\n", post.ReviewedStatus)
	fmt.Printf("  republished: %s\n", post.RepublishedStatus)
	fmt.Printf("  triples:     %d\n", len(triples))

	if len(post.Mirrors) > 0 {
		fmt.Println("  mirrors:")
		for _, mirror := range post.Mirrors {
			external := "(draft)"
			if mirror.Posted != nil {
				external = mirror.Posted.PostID
			}
			fmt.Printf("    %-10s %s  %s\n", mirror.PlatformID, mirror.ID, external)
		}
	}

	if showTriples {
		for _, t := range triples {
			fmt.Printf("  <%s> <%s> %s\n", t.Subject, t.Predicate, t.Object)
		}
	}
}
