package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/rfq-tracker/internal/app"
	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [doc.json]",
	Short: "Validate and default a document",
	Long:  `Runs a JSON document through the normalizer and prints the normalized document. Violations are listed and the command fails.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runNormalize,
}

var renderCmd = &cobra.Command{
	Use:   "render [doc.json]",
	Short: "Render a document as PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var exportCmd = &cobra.Command{
	Use:   "export [doc.json]",
	Short: "Export document items as XLSX",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var outputPath string

func init() {
	renderCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: input name with .pdf)")
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: input name with .xlsx)")

	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(exportCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	a, err := buildApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Service.Normalize(cmd.Context(), variant, raw)
	if err != nil {
		return err
	}
	printWarnings(cmd, res.Warnings)
	if !res.OK() {
		printViolations(cmd, res)
		return fmt.Errorf("%s: %d violation(s)", args[0], len(res.Violations))
	}
	return printJSON(cmd, res.Document)
}

func runRender(cmd *cobra.Command, args []string) error {
	return writeDocument(cmd, args[0], ".pdf", func(a *app.App, raw []byte) ([]byte, error) {
		return a.Service.Render(cmd.Context(), variant, raw)
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return writeDocument(cmd, args[0], ".xlsx", func(a *app.App, raw []byte) ([]byte, error) {
		return a.Service.Export(cmd.Context(), variant, raw)
	})
}

func writeDocument(cmd *cobra.Command, input, ext string, fn func(*app.App, []byte) ([]byte, error)) error {
	raw, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	a, err := buildApp(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(a, raw)
	if err != nil {
		if res, nerr := a.Service.Normalize(cmd.Context(), variant, raw); nerr == nil && !res.OK() {
			printViolations(cmd, res)
		}
		return err
	}

	dst := outputPath
	if dst == "" {
		dst = strings.TrimSuffix(input, filepath.Ext(input)) + ext
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", dst, len(out))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	warn := color.New(color.FgYellow)
	for _, w := range warnings {
		warn.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
}

func printViolations(cmd *cobra.Command, res rfq.Result) {
	bad := color.New(color.FgRed)
	for _, v := range res.Violations {
		bad.Fprintf(cmd.ErrOrStderr(), "violation: %s\n", v.Error())
	}
}
