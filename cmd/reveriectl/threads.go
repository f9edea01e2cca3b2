package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	threadsCmd := &cobra.Command{Use: "threads", Short: "Thread and message operations"}

	// create
	var userID, characterID string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create (or fetch) the thread between a user and a character",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || characterID == "" {
				return fmt.Errorf("--user and --character required")
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/threads", apiFlag), map[string]interface{}{
				"userId":      userID,
				"characterId": characterID,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	createCmd.Flags().StringVarP(&characterID, "character", "c", "", "Character ID (required)")
	_ = createCmd.MarkFlagRequired("user")
	_ = createCmd.MarkFlagRequired("character")
	threadsCmd.AddCommand(createCmd)

	// messages
	messagesCmd := &cobra.Command{
		Use:   "messages THREAD_ID",
		Short: "List a thread's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/threads/%s/messages", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	threadsCmd.AddCommand(messagesCmd)

	// send
	var content string
	sendCmd := &cobra.Command{
		Use:   "send THREAD_ID",
		Short: "Post a user message to a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if content == "" {
				return fmt.Errorf("--message required")
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/threads/%s/messages", apiFlag, args[0]), map[string]interface{}{
				"content": content,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sendCmd.Flags().StringVarP(&content, "message", "m", "", "Message content (required)")
	_ = sendCmd.MarkFlagRequired("message")
	threadsCmd.AddCommand(sendCmd)

	// respond
	respondCmd := &cobra.Command{
		Use:   "respond THREAD_ID",
		Short: "Force the character's next message to now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(fmt.Sprintf("%s/api/threads/%s/respond", apiFlag, args[0]), map[string]interface{}{})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	threadsCmd.AddCommand(respondCmd)

	// delete-from
	deleteCmd := &cobra.Command{
		Use:   "delete-from THREAD_ID MESSAGE_ID",
		Short: "Delete a message and everything after it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doDelete(fmt.Sprintf("%s/api/threads/%s/messages/%s", apiFlag, args[0], args[1]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	threadsCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(threadsCmd)
}
