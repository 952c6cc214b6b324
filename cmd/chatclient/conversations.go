package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonvanzyl/autocoder-chat/internal/conversations"
	"github.com/leonvanzyl/autocoder-chat/internal/protocol"
)

func (c *cli) conversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage saved assistant conversations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list PROJECT",
			Short: "List a project's conversations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd.Context(), func(ctx context.Context) error {
					convs, err := c.conversationClient().List(ctx, args[0])
					if err != nil {
						return err
					}
					writeConversations(cmd.OutOrStdout(), convs)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show PROJECT ID",
			Short: "Print a conversation's messages",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd.Context(), func(ctx context.Context) error {
					detail, err := c.conversationClient().Get(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					writeDetail(cmd.OutOrStdout(), detail)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete PROJECT ID",
			Short: "Delete a conversation",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.run(cmd.Context(), func(ctx context.Context) error {
					return c.deleteConversation(ctx, cmd.OutOrStdout(), args[0], args[1])
				})
			},
		},
	)
	return cmd
}

func (c *cli) deleteConversation(ctx context.Context, out io.Writer, project, id string) error {
	if err := c.conversationClient().Delete(ctx, project, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted conversation %s\n", id)
	return nil
}

func writeConversations(w io.Writer, convs []conversations.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(w, "no conversations")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, conv := range convs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", conv.ID, conv.DisplayTitle(), conv.MessageCount, formatTime(conv.UpdatedAt))
	}
	_ = tw.Flush()
}

func writeDetail(w io.Writer, d *conversations.Detail) {
	fmt.Fprintf(w, "%s (%s)\n\n", d.Conversation.DisplayTitle(), d.Conversation.ID)
	for _, m := range d.Messages {
		fmt.Fprintf(w, "%s: %s\n", m.Role, m.Content)
	}
}

func formatTime(s string) string {
	t := protocol.ParseTimestamp(s, time.Time{})
	if t.IsZero() {
		return s
	}
	return t.Local().Format("2006-01-02 15:04")
}
