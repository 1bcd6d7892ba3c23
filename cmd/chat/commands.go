package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/chat"
	"github.com/ashureev/portfolio-chat/internal/config"
	"github.com/ashureev/portfolio-chat/internal/domain"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, asker, prober, cleanup, err := clients()
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl := newController(cfg, asker, prober, cmd.ErrOrStderr())
			defer ctrl.Close()

			entry, err := ctrl.Submit(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry.Text)
			return nil
		},
	}
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, asker, prober, cleanup, err := clients()
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl := newController(cfg, asker, prober, cmd.ErrOrStderr())
			defer ctrl.Close()
			ctrl.Start(ctx)

			return repl(ctx, ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the answering service once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, prober, cleanup, err := clients()
			if err != nil {
				return err
			}
			defer cleanup()

			status := chat.NewHealthMonitor(prober, cfg.Answer.HealthTimeout, nil).CheckOnce(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), status)
			if !status.Online() {
				return errors.New("answering service is offline")
			}
			return nil
		},
	}
}

func newController(cfg *config.Config, asker backend.Asker, prober backend.Prober, notices io.Writer) *chat.Controller {
	return chat.NewController(asker, prober, chat.Options{
		SessionKey:     "cli",
		HealthInterval: cfg.Answer.HealthInterval,
		ProbeTimeout:   cfg.Answer.HealthTimeout,
		AskTimeout:     cfg.Answer.AskTimeout,
		Sink: chat.NotifierFunc(func(_ context.Context, n domain.Notice) {
			fmt.Fprintf(notices, "! %s\n", n.Message)
		}),
	})
}

// repl prints the transcript, then alternates between reading a line and
// printing the answer. Health changes are printed as they arrive.
func repl(ctx context.Context, ctrl *chat.Controller, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, e := range ctrl.Entries() {
		printEntry(out, e)
	}

	events, unsubscribe := ctrl.Subscribe(chat.DefaultSubscriberBuffer)
	defer unsubscribe()

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

	mu := &syncWriter{w: out}

	g := errgroup.Group{}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if ev.Type == chat.EventHealth {
					mu.printf("[answering service %s]\n", ev.Health)
				}
			}
		}
	})

	g.Go(func() error {
		defer cancel()
		for {
			mu.printf("> ")
			var line string
			select {
			case <-ctx.Done():
				return nil
			case l, ok := <-lines:
				if !ok {
					mu.printf("\n")
					return nil
				}
				line = l
			}

			switch strings.TrimSpace(line) {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/suggestions":
				for _, s := range chat.Suggestions() {
					mu.printf("  %s\n", s)
				}
				continue
			}

			entry, err := ctrl.Submit(ctx, line)
			switch {
			case errors.Is(err, chat.ErrOffline):
				mu.printf("not sent: answering service is offline\n")
			case errors.Is(err, chat.ErrClosed):
				return nil
			case err != nil:
				mu.printf("! %v\n", err)
			default:
				mu.printf("assistant: %s\n", entry.Text)
			}
		}
	})

	return g.Wait()
}

func printEntry(w io.Writer, e domain.MessageEntry) {
	fmt.Fprintf(w, "%s: %s\n", e.Author, e.Text)
}

// syncWriter serializes output from the event and input goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
