package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/chat"
	"storefront/internal/models"
)

func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "List your conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				s.app.Chat.FetchConversations(s.ctx)
				return printConversations(s)
			})
		},
	}

	cmd.AddCommand(newChatOpenCommand(rootOpts))
	cmd.AddCommand(newChatSendCommand(rootOpts))
	cmd.AddCommand(newChatNewCommand(rootOpts))
	cmd.AddCommand(newChatSupportCommand(rootOpts))
	cmd.AddCommand(newChatUsersCommand(rootOpts))
	cmd.AddCommand(newChatWatchCommand(rootOpts))

	return cmd
}

func newChatOpenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <conversation-id>",
		Short: "Show a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				return openConversation(s, args[0])
			})
		},
	}
}

func openConversation(s *session, id string) error {
	s.app.Chat.FetchConversation(s.ctx, id)
	conv := s.app.Chat.Current()
	if conv == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("could not open conversation %s", id))
	}
	return s.out.Emit(conv, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", conv.Topic)
		for _, m := range conv.Messages {
			printMessage(w, m)
		}
	})
}

type ChatSendOptions struct {
	*RootOptions
	To string
}

func newChatSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatSendOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "send <conversation-id> <message...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				if !s.app.Chat.SendMessage(s.ctx, args[0], strings.Join(args[1:], " "), opts.To) {
					return NewExitError(ExitFailure, "message not sent")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Sent")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.To, "to", "", "receiver user id (defaults to the other participant)")
	return cmd
}

type ChatNewOptions struct {
	*RootOptions
	Topic   string
	With    []string
	Message string
}

func newChatNewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatNewOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a conversation with other users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				id, ok := s.app.Chat.CreateConversation(s.ctx, opts.Topic, opts.With, opts.Message)
				return printCreated(s, id, ok)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "conversation topic")
	cmd.Flags().StringSliceVar(&opts.With, "with", nil, "participant user ids")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "first message")
	cmd.MarkFlagRequired("topic")
	cmd.MarkFlagRequired("with")
	return cmd
}

func newChatSupportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatNewOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Open a conversation with customer support",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				id, ok := s.app.Chat.ContactSupport(s.ctx, opts.Topic, opts.Message)
				return printCreated(s, id, ok)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "what you need help with")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "first message")
	cmd.MarkFlagRequired("topic")
	return cmd
}

func printCreated(s *session, id string, ok bool) error {
	if !ok {
		return NewExitError(ExitFailure, "conversation not created")
	}
	return s.out.Emit(map[string]string{"id": id}, func(w io.Writer) {
		fmt.Fprintf(w, "Conversation %s created\n", id)
	})
}

func newChatUsersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users <query>",
		Short: "Find users to talk to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				s.app.Chat.SearchUsers(s.ctx, args[0])
				users := s.app.Chat.SearchResults()
				return s.out.Emit(users, func(w io.Writer) {
					rows := make([][]string, 0, len(users))
					for _, u := range users {
						rows = append(rows, []string{u.ID, u.Name, u.Email})
					}
					s.out.Table([]string{"ID", "NAME", "EMAIL"}, rows)
				})
			})
		},
	}
}

type ChatWatchOptions struct {
	*RootOptions
	Poll     string
	Interval time.Duration
}

func newChatWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatWatchOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "watch [conversation-id]",
		Short: "Follow new conversations and messages until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				return watchChat(s, opts, args)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Poll, "poll", chat.DefaultPollSchedule, "schedule for the new-message check")
	cmd.Flags().DurationVar(&opts.Interval, "refresh", 500*time.Millisecond, "how often the open conversation is redrawn")
	return cmd
}

func watchChat(s *session, opts *ChatWatchOptions, args []string) error {
	ctx := s.ctx
	w := s.out.Writer

	s.app.Chat.FetchConversations(ctx)
	stop, err := s.app.WatchChat(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "connect to chat", err)
	}
	defer stop()

	poller, err := chat.NewUnreadPoller(s.app.API, opts.Poll, func(r models.CheckNewResponse) {
		fmt.Fprintf(w, "%d new message(s)\n", r.Count)
		s.app.Chat.FetchConversations(ctx)
	}, s.log)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --poll", err)
	}
	poller.Start()
	defer poller.Stop()

	printed := 0
	if len(args) == 1 {
		s.app.Chat.FetchConversation(ctx, args[0])
		if conv := s.app.Chat.Current(); conv != nil {
			fmt.Fprintf(w, "%s\n", conv.Topic)
		}
	}
	fmt.Fprintf(w, "Watching, %d unread. Press Ctrl-C to stop.\n", s.app.Chat.TotalUnread())

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		if conv := s.app.Chat.Current(); conv != nil && len(conv.Messages) > printed {
			for _, m := range conv.Messages[printed:] {
				printMessage(w, m)
			}
			printed = len(conv.Messages)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printConversations(s *session) error {
	convs := s.app.Chat.Conversations()
	return s.out.Emit(convs, func(w io.Writer) {
		if len(convs) == 0 {
			fmt.Fprintln(w, "No conversations")
			return
		}
		rows := make([][]string, 0, len(convs))
		for _, c := range convs {
			last := ""
			if c.LastMessage != nil {
				last = truncate(c.LastMessage.Content, 40)
			}
			rows = append(rows, []string{c.ID, c.Topic, fmt.Sprint(c.UnreadCount), c.UpdatedAt.Format("2006-01-02 15:04"), last})
		}
		s.out.Table([]string{"ID", "TOPIC", "UNREAD", "UPDATED", "LAST MESSAGE"}, rows)
	})
}

func printMessage(w io.Writer, m models.Message) {
	from := m.SenderID
	if m.Sender != nil && m.Sender.Name != "" {
		from = m.Sender.Name
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), from, m.Content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
