// Command chat talks to the answering service from a terminal, through the
// same session controller the widget uses.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/config"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the portfolio assistant from the terminal",
		Long: `Runs one chat session in-process against the answering service
configured by ANSWER_SERVICE_URL (and optionally ANSWER_HEALTH_GRPC_ADDR).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(newAskCmd(), newReplCmd(), newHealthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// clients builds the asker and prober from configuration. The returned
// cleanup releases the gRPC connection when one was opened.
func clients() (*config.Config, backend.Asker, backend.Prober, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	answers := backend.NewHTTPClient(backend.HTTPClientConfig{
		BaseURL:      cfg.Answer.URL,
		AskTimeout:   cfg.Answer.AskTimeout,
		ProbeTimeout: cfg.Answer.HealthTimeout,
	}, slog.Default())

	if cfg.Answer.HealthGRPCAddr == "" {
		return cfg, answers, answers, func() {}, nil
	}
	grpcProber, err := backend.NewGRPCProber(backend.GRPCProberConfig{
		Address:      cfg.Answer.HealthGRPCAddr,
		ProbeTimeout: cfg.Answer.HealthTimeout,
	}, slog.Default())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, answers, grpcProber, grpcProber.Close, nil
}
