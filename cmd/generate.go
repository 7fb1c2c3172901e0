package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/app"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/orchestrator"
)

var (
	stepColor     = color.New(color.FgCyan, color.Bold)
	doneColor     = color.New(color.FgGreen, color.Bold)
	errorColor    = color.New(color.FgRed, color.Bold)
	progressColor = color.New(color.Faint)
)

type generateOptions struct {
	input     string
	offline   bool
	quiet     bool
	responses map[string]string
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the pipeline once and print the generated content as JSON",
		Long: `Run research, services, questions and calculations for one project
description and print the resulting content as JSON on stdout. Step progress
goes to stderr.

Examples:
  # Generate against the configured engine
  scope-engine generate --input "Migrate 500 users to Microsoft 365"

  # No network: canned mock engine, answers applied afterwards
  scope-engine generate --offline --input - --responses user_count=800,site_count=4 < request.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", `project description ("-" reads stdin)`)
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "use the mock engine instead of a model provider")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print step progress")
	cmd.Flags().StringToStringVar(&opts.responses, "responses", nil, "question answers as key=value, applied after generation")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	input, err := readInput(opts.input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if opts.offline {
		// Must be set before Load so validation does not ask for API keys.
		_ = os.Setenv("LLM_ENGINE", config.EngineMock)
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	_, orch, err := app.NewPipeline(cmd.Context(), cfg, log, nil)
	if err != nil {
		return err
	}

	var sink orchestrator.Sink
	if !opts.quiet {
		sink = stepPrinter(cmd.ErrOrStderr())
	}
	content, err := orch.Run(cmd.Context(), orchestrator.Request{Input: input}, sink)
	if err != nil {
		return err
	}

	if len(opts.responses) > 0 {
		content, err = orch.ApplyResponses(content, parseResponses(opts.responses))
		if err != nil {
			return fmt.Errorf("apply responses: %w", err)
		}
		if !opts.quiet {
			doneColor.Fprintf(cmd.ErrOrStderr(), "applied %d responses, total %.1f hours\n", len(opts.responses), content.TotalHours)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(content)
}

func readInput(flag string, stdin io.Reader) (string, error) {
	input := flag
	if strings.TrimSpace(flag) == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		input = string(b)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("input is empty")
	}
	return input, nil
}

// parseResponses turns flag strings into the value kinds a question
// accepts: numbers, booleans and plain text.
func parseResponses(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		v = strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			out[k] = b
			continue
		}
		out[k] = v
	}
	return out
}

func stepPrinter(w io.Writer) orchestrator.Sink {
	return func(ev scoping.StreamingEvent) {
		switch ev.Type {
		case scoping.EventStep:
			if ev.Status == scoping.StatusCompleted {
				doneColor.Fprintf(w, "[%3d%%] %s done\n", ev.Progress, ev.StepID)
			} else {
				stepColor.Fprintf(w, "[%3d%%] %s...\n", ev.Progress, ev.StepID)
			}
		case scoping.EventProgress:
			progressColor.Fprintf(w, "[%3d%%]   %s\n", ev.Progress, ev.Message)
		case scoping.EventError:
			errorColor.Fprintf(w, "[%3d%%] %s failed: %s\n", ev.Progress, ev.StepID, ev.Error)
		case scoping.EventComplete:
			if ev.Content != nil {
				doneColor.Fprintf(w, "[100%%] complete: %d services, %d questions, %.1f hours\n",
					len(ev.Content.Services), len(ev.Content.Questions), ev.Content.TotalHours)
			}
		}
	}
}
