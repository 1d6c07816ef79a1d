package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shhac/verifai/internal/background"
	"github.com/shhac/verifai/internal/extension"
	"github.com/shhac/verifai/internal/notify"
	"github.com/shhac/verifai/internal/overlay"
	"github.com/shhac/verifai/internal/protocol"
	"github.com/shhac/verifai/internal/ui"
)

// ErrNothingToAnalyze is returned when neither an argument nor stdin holds
// text.
var ErrNothingToAnalyze = errors.New("nothing to analyze: pass TEXT or pipe it on stdin")

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [TEXT]",
		Short: "Analyze a piece of text without the terminal page",
		Long: `Analyze runs one analysis the way the page does: the text is selected on a
headless page, the overlay is injected and the result rendered. The overlay's
final state is printed.

Examples:
  # Analyze an argument
  verifai analyze "Everyone already knows this plan is the only sensible choice."

  # Analyze stdin and print JSON
  pbpaste | verifai analyze --json

  # Use the demo service and show a desktop notification
  verifai analyze --demo --notify "Act now before it is too late!"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAnalyzeCmd,
	}

	cmd.Flags().Bool("demo", false, "Use the built-in demo analysis service")
	cmd.Flags().Bool("json", false, "Print the overlay state as JSON")
	cmd.Flags().Bool("notify", false, "Show a desktop notification with the outcome")
	cmd.Flags().String("url", "https://example.com/", "URL of the headless page")

	return cmd
}

// report is the JSON form of an overlay's final state.
type report struct {
	State        string                   `json:"state"`
	SelectedText string                   `json:"selectedText"`
	Result       *protocol.AnalysisResult `json:"result,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	useDemo, _ := cmd.Flags().GetBool("demo")
	asJSON, _ := cmd.Flags().GetBool("json")
	withNotify, _ := cmd.Flags().GetBool("notify")
	pageURL, _ := cmd.Flags().GetString("url")

	text, err := readText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfgPath, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cmd.ErrOrStderr())
	ctx := cmd.Context()

	var fixedEndpoint string
	if useDemo {
		d, err := startDemo("127.0.0.1:0", 0, logger)
		if err != nil {
			return err
		}
		defer d.Shutdown(context.Background())
		fixedEndpoint = d.AnalyzeURL()
	}

	rt := extension.New(extension.Options{
		Analyzer: newClient(cfgPath, cfg, fixedEndpoint, logger),
		Timeouts: background.TimeoutsFromConfig(cfg),
		Logger:   logger,
	})
	doc := overlay.NewDocument("", []string{text})
	tab := rt.OpenTab(pageURL, doc)
	doc.Select(text, nil)

	runCtx, stop := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return rt.Run(runCtx) })

	analyzeErr := rt.AnalyzeSync(ctx, tab)
	snap, snapErr := rt.Snapshot(ctx, tab)
	stop()
	if err := g.Wait(); err != nil {
		return err
	}

	if withNotify {
		title, body := notify.Summary(snap.Result, analyzeErr)
		if err := notify.Send(title, body); err != nil {
			logger.Warn("notification failed", "error", err)
		}
	}

	if errors.Is(analyzeErr, background.ErrInjectionFailed) {
		return fmt.Errorf("page %s cannot be analyzed: %w", pageURL, analyzeErr)
	}
	if snapErr != nil {
		return snapErr
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report{State: snap.Kind.String(), SelectedText: snap.SelectedText, Result: snap.Result, Error: snap.Error}); err != nil {
			return err
		}
	} else {
		printSnapshot(out, snap)
	}
	return analyzeErr
}

// readText takes the text from the argument, or from stdin when there is
// no argument or it is "-".
func readText(stdin io.Reader, args []string) (string, error) {
	var text string
	if len(args) == 1 && args[0] != "-" {
		text = args[0]
	} else {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNothingToAnalyze
	}
	return text, nil
}

// printSnapshot writes the overlay's content as plain text.
func printSnapshot(w io.Writer, snap overlay.Snapshot) {
	switch snap.Kind {
	case overlay.Error:
		fmt.Fprintln(w, overlay.ErrorTitle)
		if snap.Error != "" {
			fmt.Fprintln(w, "  "+ui.SafeText(snap.Error))
		}
		fmt.Fprintln(w, overlay.ErrorHint)
	case overlay.Results:
		printResult(w, snap.Result)
	default:
		fmt.Fprintln(w, "No result")
	}
}

func printResult(w io.Writer, r *protocol.AnalysisResult) {
	if r == nil {
		r = &protocol.AnalysisResult{}
	}
	if r.Manipulation {
		fmt.Fprintln(w, overlay.StatusDetected)
	} else {
		fmt.Fprintln(w, overlay.StatusClean)
	}

	fmt.Fprintln(w, "\nTechniques:")
	if len(r.Techniques) == 0 {
		fmt.Fprintln(w, "  "+overlay.NoTechniquesText)
	}
	for _, id := range r.Techniques {
		tech, known := protocol.LookupTechnique(id)
		if known {
			fmt.Fprintf(w, "  - %s: %s\n", tech.Label, tech.Description)
		} else {
			fmt.Fprintf(w, "  - %s\n", ui.SafeText(tech.Label))
		}
	}

	if r.HasExplanation() {
		fmt.Fprintln(w, "\nExplanation:")
		fmt.Fprintln(w, "  "+strings.TrimSpace(ui.SafeText(r.Explanation)))
	}
	if r.HasDisinfo() {
		fmt.Fprintln(w, "\nDebunked claims:")
		for _, c := range r.Disinfo {
			fmt.Fprintln(w, "  - "+ui.SafeText(c))
		}
	}
}
