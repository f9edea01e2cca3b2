package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	charsCmd := &cobra.Command{Use: "characters", Short: "Character operations"}

	// create
	var name, path, personality, appearance, scenario, imageModel string
	var imgGen bool
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a character",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || path == "" {
				return fmt.Errorf("--name and --path required")
			}
			payload := map[string]interface{}{
				"name":   name,
				"path":   path,
				"imgGen": imgGen,
			}
			if personality != "" {
				payload["personality"] = personality
			}
			if appearance != "" {
				payload["appearance"] = appearance
			}
			if scenario != "" {
				payload["scenario"] = scenario
			}
			if imageModel != "" {
				payload["imageModel"] = imageModel
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/characters", apiFlag), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Display name (required)")
	createCmd.Flags().StringVarP(&path, "path", "p", "", "URL-safe path (required)")
	createCmd.Flags().StringVar(&personality, "personality", "", "Personality prose")
	createCmd.Flags().StringVar(&appearance, "appearance", "", "Appearance prose")
	createCmd.Flags().StringVar(&scenario, "scenario", "", "Scenario prose")
	createCmd.Flags().BoolVar(&imgGen, "img-gen", false, "Enable image posts")
	createCmd.Flags().StringVar(&imageModel, "image-model", "", "Image model ID (required with --img-gen)")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("path")
	charsCmd.AddCommand(createCmd)

	// list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/characters", apiFlag))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	charsCmd.AddCommand(listCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get CHARACTER_ID",
		Short: "Get character by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/characters/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	charsCmd.AddCommand(getCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete CHARACTER_ID",
		Short: "Delete a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := doDelete(fmt.Sprintf("%s/api/characters/%s", apiFlag, args[0]))
			return err
		},
	}
	charsCmd.AddCommand(deleteCmd)

	// events
	eventsCmd := &cobra.Command{
		Use:   "events CHARACTER_ID",
		Short: "List a character's events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/characters/%s/events", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	charsCmd.AddCommand(eventsCmd)

	// posts
	postsCmd := &cobra.Command{
		Use:   "posts CHARACTER_ID",
		Short: "List a character's posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/characters/%s/posts", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	charsCmd.AddCommand(postsCmd)

	rootCmd.AddCommand(charsCmd)
}
