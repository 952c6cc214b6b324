package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leonvanzyl/autocoder-chat/internal/chat"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/id"
	"github.com/leonvanzyl/autocoder-chat/internal/shared/types"
)

type feature struct {
	name  string
	short string
}

var (
	featureAssistant = feature{name: string(chat.FeatureAssistant), short: "Chat with the project assistant"}
	featureExpand    = feature{name: string(chat.FeatureExpand), short: "Expand a project with new features"}
	featureFeatures  = feature{name: "features", short: "Turn a conversation into feature suggestions"}
)

const helpText = `Commands:
  /new             start a new conversation
  /switch ID       reopen a saved conversation (assistant)
  /list            list saved conversations (assistant)
  /attach FILE MSG send MSG with an image attached
  /accept N        accept suggestion N (features)
  /reject N        reject suggestion N (features)
  /done            finish the expansion (expand)
  /help            show this help
  /quit            leave

Start a message with // to send it with a single leading slash.`

// controller is the part of a session the REPL drives
type controller interface {
	Start(ctx context.Context, conversationID string) error
	SendMessage(content string, attachments ...types.ImageAttachment) error
	NewConversation(ctx context.Context) error
	Close()
}

func (c *cli) sessionCmd(f feature) *cobra.Command {
	var resume string

	cmd := &cobra.Command{
		Use:   f.name + " PROJECT",
		Short: f.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context) error {
				return c.chat(ctx, f, args[0], resume, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	if f == featureAssistant {
		cmd.Flags().StringVar(&resume, "conversation", "", "Resume a saved conversation")
	}
	return cmd
}

func (c *cli) chat(ctx context.Context, f feature, project, resume string, in io.Reader, out io.Writer) error {
	r := newRenderer(out)

	opts := chat.OptionsFromConfig(c.cfg, project)
	opts.Logger = c.logger
	opts.Metrics = c.metrics
	opts.OnChange = r.render
	opts.OnError = func(err error) {
		c.logger.Debug("session error", zap.Error(err))
		r.printf("! %v\n", err)
	}

	var (
		ctl controller
		rp  = &repl{out: r}
		err error
	)
	switch f {
	case featureAssistant:
		opts.Store = c.conversationClient()
		var a *chat.Assistant
		a, err = chat.NewAssistant(opts)
		ctl, rp.assistant = a, a
	case featureExpand:
		var e *chat.Expand
		e, err = chat.NewExpand(opts)
		ctl, rp.expand = e, e
	case featureFeatures:
		var s *chat.Features
		s, err = chat.NewFeatures(opts)
		ctl, rp.features = s, s
	}
	if err != nil {
		return err
	}
	defer ctl.Close()
	rp.ctl = ctl

	if resume != "" && rp.assistant != nil {
		err = rp.assistant.SwitchConversation(ctx, resume)
	} else {
		err = ctl.Start(ctx, "")
	}
	if err != nil {
		return err
	}
	r.printf("connected to %s, /help for commands\n", project)

	return rp.loop(ctx, in)
}

// repl reads user lines and dispatches them to the session
type repl struct {
	ctl       controller
	assistant *chat.Assistant
	expand    *chat.Expand
	features  *chat.Features
	out       *renderer
}

var errQuit = errors.New("quit")

func (r *repl) loop(ctx context.Context, in io.Reader) error {
	// Releases the reader when the loop ends on /quit
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := r.handle(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				r.out.printf("! %v\n", err)
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	cmd := parseCommand(line)
	switch cmd.name {
	case "":
		if cmd.arg == "" {
			return nil
		}
		return r.ctl.SendMessage(cmd.arg)
	case "quit", "exit":
		return errQuit
	case "help":
		r.out.printf("%s\n", helpText)
		return nil
	case "new":
		return r.ctl.NewConversation(ctx)
	case "attach":
		path, msg, _ := strings.Cut(cmd.arg, " ")
		if path == "" {
			return errors.New("usage: /attach FILE MESSAGE")
		}
		att, err := loadAttachment(path)
		if err != nil {
			return err
		}
		return r.ctl.SendMessage(msg, att)
	}

	switch {
	case r.assistant != nil:
		return r.assistantCommand(ctx, cmd)
	case r.expand != nil && cmd.name == "done":
		return r.expand.Finish()
	case r.features != nil && (cmd.name == "accept" || cmd.name == "reject"):
		n, err := strconv.Atoi(cmd.arg)
		if err != nil {
			return fmt.Errorf("usage: /%s N", cmd.name)
		}
		if cmd.name == "accept" {
			return r.features.AcceptFeature(n)
		}
		return r.features.RejectFeature(n)
	}
	return fmt.Errorf("unknown command /%s", cmd.name)
}

func (r *repl) assistantCommand(ctx context.Context, cmd command) error {
	switch cmd.name {
	case "switch":
		if cmd.arg == "" {
			return errors.New("usage: /switch ID")
		}
		return r.assistant.SwitchConversation(ctx, cmd.arg)
	case "list":
		convs, err := r.assistant.ListConversations(ctx)
		if err != nil {
			return err
		}
		writeConversations(r.out, convs)
		return nil
	}
	return fmt.Errorf("unknown command /%s", cmd.name)
}

// command is a parsed slash command. A plain message has an empty name.
// command is a parsed input line; an empty name means arg is a message
type command struct {
	name string
	arg  string
}

func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "//") {
		return command{arg: line[1:]}
	}
	if !strings.HasPrefix(line, "/") {
		return command{arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

func loadAttachment(path string) (types.ImageAttachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ImageAttachment{}, fmt.Errorf("read attachment: %w", err)
	}
	return types.NewImageAttachment(id.NewAttachmentID().String(), filepath.Base(path), data)
}
