// Command scrapesome-cli fetches a single URL from the terminal without
// running the HTTP service. It wires the same orchestrator the server uses:
// lightweight HTTP first, browser rendering as fallback.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrapesome/scrapesome/config"
	"github.com/scrapesome/scrapesome/fetch"
	"github.com/scrapesome/scrapesome/format"
	"github.com/scrapesome/scrapesome/models"
	"github.com/scrapesome/scrapesome/render"
	"github.com/scrapesome/scrapesome/transport"
)

var flags struct {
	outputFormat string
	extractMode  string
	cssSelector  string
	forceRender  bool
	maxRetries   int
	timeoutSec   int
	headers      []string
	outputFile   string
	proxy        string
	verbose      bool
}

var rootCmd = &cobra.Command{
	Use:   "scrapesome-cli <url>",
	Short: "Fetch a web page with automatic render fallback",
	Long: `Fetches a web page using a lightweight HTTP client, retrying transient
failures, and escalates to a headless browser when the page blocks plain
HTTP or serves too little content. Prints the formatted result to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: run,

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&flags.outputFormat, "format", "f", "markdown", "output format: markdown, html, text, json")
	rootCmd.Flags().StringVarP(&flags.extractMode, "extract", "e", "readability", "extract mode: readability, raw")
	rootCmd.Flags().StringVar(&flags.cssSelector, "selector", "", "CSS selector to scope extraction to")
	rootCmd.Flags().BoolVar(&flags.forceRender, "force-render", false, "skip HTTP and go straight to browser rendering")
	rootCmd.Flags().IntVar(&flags.maxRetries, "retries", 2, "HTTP retry budget for transient failures and 403s")
	rootCmd.Flags().IntVarP(&flags.timeoutSec, "timeout", "t", 30, "per-attempt timeout in seconds")
	rootCmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "extra request header, 'Name: Value' (repeatable)")
	rootCmd.Flags().StringVarP(&flags.outputFile, "output", "o", "", "write result to file instead of stdout")
	rootCmd.Flags().StringVar(&flags.proxy, "proxy", "", "proxy URL for both HTTP and browser requests")
	rootCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	initLogger(flags.verbose)

	cfg := config.Load()
	if flags.proxy != "" {
		cfg.Browser.DefaultProxy = flags.proxy
	}

	rd, err := render.NewRenderer(cfg.Browser)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer rd.Close()

	tc := transport.NewClient(cfg.Browser.DefaultProxy)
	f := fetch.New(tc, rd, format.New(), cfg.Fetch)

	req := &models.FetchRequest{
		URL:          args[0],
		OutputFormat: flags.outputFormat,
		ExtractMode:  flags.extractMode,
		CSSSelector:  flags.cssSelector,
		ForceRender:  flags.forceRender,
		MaxRetries:   &flags.maxRetries,
		Timeout:      flags.timeoutSec,
		Headers:      parseHeaders(flags.headers),
	}
	req.Defaults()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(flags.timeoutSec+60)*time.Second)
	defer cancel()

	start := time.Now()
	result := f.Fetch(ctx, req)
	if result.Failed() {
		return fmt.Errorf("fetch failed [%s]: %s", result.Error.Code, result.Error.Message)
	}

	slog.Debug("fetch complete",
		"source", result.SourceMethod,
		"status", result.StatusCode,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if flags.outputFile != "" {
		if err := os.WriteFile(flags.outputFile, []byte(result.Data), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s (source: %s)\n",
			len(result.Data), flags.outputFile, result.SourceMethod)
		return nil
	}

	fmt.Println(result.Data)
	return nil
}

// parseHeaders converts "Name: Value" strings into a header map.
func parseHeaders(raw []string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers
}

func initLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
