package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/accessdesk/pkg/configuration"
)

func newChatCmd() *cobra.Command {
	var requesterID string

	cmd := &cobra.Command{
		Use:   "chat --as <person-id>",
		Short: "Talk to the access desk from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(requesterID) == "" {
				return fmt.Errorf("--as is required")
			}
			return chat(cmd.Context(), requesterID)
		},
	}
	cmd.Flags().StringVar(&requesterID, "as", "", "person id to chat as (e.g. ivan)")
	return cmd
}

func chat(ctx context.Context, requesterID string) error {
	conf := configuration.Use()

	a, err := buildApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("access desk, chatting as %s (ctrl-d to quit)\n", requesterID)
	scanner := bufio.NewScanner(os.Stdin)
	seen := 0
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, err := a.conversations.HandleMessage(ctx, requesterID, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(reply.Message)

		// Notifications that arrived since the last prompt, e.g. decisions
		// on requests assigned to this person.
		inbox := a.transcripts.For(requesterID)
		for ; seen < len(inbox); seen++ {
			fmt.Printf("[notification] %s\n", inbox[seen].Body)
		}
	}
	return scanner.Err()
}
