package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/bloom/backend/internal/config"
	"github.com/zhouzirui/bloom/backend/internal/logging"
	"github.com/zhouzirui/bloom/backend/internal/model/chat"
	"github.com/zhouzirui/bloom/backend/internal/model/persona"
	"github.com/zhouzirui/bloom/backend/internal/service/ai"
	chatService "github.com/zhouzirui/bloom/backend/internal/service/chat"
	"github.com/zhouzirui/bloom/backend/internal/service/notice"
)

type probeOptions struct {
	personaFile string
	endpoint    string
	apiKey      string
	timeout     time.Duration
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &probeOptions{}

	root := &cobra.Command{
		Use:           "chatprobe",
		Short:         "Probe the DeepSeek chat backend from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.personaFile, "persona-file", "", "YAML persona catalog (default: PERSONA_FILE or built-in personas)")
	root.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "", "Override DEEPSEEK_API_URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "Override DEEPSEEK_API_KEY")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 45*time.Second, "Per-request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newPersonasCmd(opts), newAskCmd(opts), newChatCmd(opts))
	return root
}

func newPersonasCmd(opts *probeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the persona catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.personas()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range store.List() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", p.ID, p.Name, p.Title)
				for _, q := range p.QuickQuestions {
					fmt.Fprintf(out, "\t- %s\n", q)
				}
			}
			return nil
		},
	}
}

func newAskCmd(opts *probeOptions) *cobra.Command {
	var personaID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, svc, err := opts.build()
			if err != nil {
				return err
			}
			p, ok := store.FindByID(personaID)
			if !ok {
				return fmt.Errorf("persona %q not found", personaID)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			history := []chat.Turn{{Role: chat.RoleUser, Text: strings.Join(args, " "), Sequence: 1}}
			outcome := svc.Complete(ctx, history, p.Instruction)
			return printOutcome(cmd.OutOrStdout(), outcome)
		},
	}
	cmd.Flags().StringVarP(&personaID, "persona", "p", persona.RecoveryCoachID, "Persona id")
	return cmd
}

func newChatCmd(opts *probeOptions) *cobra.Command {
	var personaID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold a multi-turn conversation on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, svc, err := opts.build()
			if err != nil {
				return err
			}

			notices := notice.NewCenter(0, zap.NewNop())
			defer notices.Close()
			sessions, err := chatService.NewService(store, svc, notices, zap.NewNop())
			if err != nil {
				return err
			}

			state, err := sessions.CreateSession(cmd.Context(), personaID)
			if err != nil {
				return err
			}
			return converse(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), sessions, notices, state, opts.timeout)
		},
	}
	cmd.Flags().StringVarP(&personaID, "persona", "p", persona.TreeHoleID, "Persona id")
	return cmd
}

func converse(ctx context.Context, in io.Reader, out io.Writer, sessions *chatService.Service, notices *notice.Center, state chatService.State, timeout time.Duration) error {
	for _, turn := range state.Turns {
		fmt.Fprintf(out, "%s> %s\n", turn.Role, turn.Text)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "user> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "/quit" {
			return nil
		}

		sendCtx, cancel := context.WithTimeout(ctx, timeout)
		exchange, err := sessions.Send(sendCtx, state.Session.ID, line)
		cancel()
		if errors.Is(err, chat.ErrEmptyText) {
			continue
		}
		if err != nil {
			return err
		}

		if exchange.Reply != nil {
			fmt.Fprintf(out, "assistant> %s\n", exchange.Reply.Text)
		}
		for _, n := range notices.Active(state.Session.ID) {
			fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Text)
			notices.Dismiss(state.Session.ID, n.ID)
		}
	}
}

func printOutcome(out io.Writer, outcome ai.Outcome) error {
	fmt.Fprintln(out, outcome.Text)
	if outcome.OK() {
		return nil
	}
	if outcome.StatusCode != 0 {
		return fmt.Errorf("completion failed: %s (HTTP %d)", outcome.Fault, outcome.StatusCode)
	}
	return fmt.Errorf("completion failed: %s", outcome.Fault)
}

func (o *probeOptions) personas() (persona.Store, error) {
	path := o.personaFile
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.Persona.File
	}
	if path == "" {
		return persona.NewMemoryStore(persona.Seed()), nil
	}
	items, err := persona.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return persona.NewMemoryStore(items), nil
}

func (o *probeOptions) build() (persona.Store, *ai.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if o.endpoint != "" {
		cfg.AI.Endpoint = o.endpoint
	}
	if o.apiKey != "" {
		cfg.AI.APIKey = o.apiKey
	}
	if o.personaFile != "" {
		cfg.Persona.File = o.personaFile
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger, err := logging.New(config.LogConfig{Level: level, Format: "console"})
	if err != nil {
		return nil, nil, err
	}

	store, err := o.personas()
	if err != nil {
		return nil, nil, err
	}
	svc, err := ai.NewService(cfg.AI, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, svc, nil
}
