package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	postsCmd := &cobra.Command{Use: "posts", Short: "Post operations"}

	getCmd := &cobra.Command{
		Use:   "get POST_ID",
		Short: "Get post by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/posts/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	postsCmd.AddCommand(getCmd)

	// comment
	var userID, content string
	commentCmd := &cobra.Command{
		Use:   "comment POST_ID",
		Short: "Comment on a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || content == "" {
				return fmt.Errorf("--user and --message required")
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/posts/%s/comments", apiFlag, args[0]), map[string]interface{}{
				"userId":  userID,
				"content": content,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	commentCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	commentCmd.Flags().StringVarP(&content, "message", "m", "", "Comment content (required)")
	_ = commentCmd.MarkFlagRequired("user")
	_ = commentCmd.MarkFlagRequired("message")
	postsCmd.AddCommand(commentCmd)

	// like
	var likeUserID string
	likeCmd := &cobra.Command{
		Use:   "like POST_ID",
		Short: "Like a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if likeUserID == "" {
				return fmt.Errorf("--user required")
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/posts/%s/likes", apiFlag, args[0]), map[string]interface{}{
				"userId": likeUserID,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	likeCmd.Flags().StringVarP(&likeUserID, "user", "u", "", "User ID (required)")
	_ = likeCmd.MarkFlagRequired("user")
	postsCmd.AddCommand(likeCmd)

	rootCmd.AddCommand(postsCmd)
}
