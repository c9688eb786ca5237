// Command rfqctl normalizes, extracts, renders and exports RFQ documents
// from the command line.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/rfq-tracker/internal/app"
	"github.com/joseph-ayodele/rfq-tracker/internal/common"
)

var (
	variant    string
	tenant     string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "rfqctl",
	Short:         "Extract and validate RFQ and quotation documents",
	Long:          `Turns supplier documents into validated RFQ or quotation records, renders them as PDF and exports their items as XLSX.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&variant, "variant", "rfq", "document variant: rfq or quotation")
	pf.StringVar(&tenant, "tenant", "", "tenant whose metadata defaults apply")
	pf.StringVar(&configPath, "config", os.Getenv("RFQ_CONFIG"), "YAML file with branding and tenant defaults")
	pf.BoolVar(&verbose, "verbose", false, "log debug output to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// buildApp loads configuration and connects what the command needs.
func buildApp(cmd *cobra.Command, opts app.Options) (*app.App, error) {
	cfg := common.LoadConfig()
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if tenant != "" {
		ctx = common.WithTenant(ctx, tenant)
		cmd.SetContext(ctx)
	}
	return app.Build(ctx, cfg, newLogger(cmd), opts)
}
