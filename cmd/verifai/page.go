package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shhac/verifai/internal/background"
	"github.com/shhac/verifai/internal/config"
	"github.com/shhac/verifai/internal/demo"
	"github.com/shhac/verifai/internal/extension"
	"github.com/shhac/verifai/internal/logging"
	"github.com/shhac/verifai/internal/overlay"
	"github.com/shhac/verifai/internal/ui"
)

const (
	defaultPageURL   = "https://news.example.com/city-council-transit-plan"
	defaultDemoDelay = 600 * time.Millisecond
	shutdownTimeout  = 5 * time.Second
)

// NewPageCmd creates the page command.
func NewPageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page [FILE]",
		Short: "Open an article in the terminal and analyze its paragraphs",
		Long: `Page shows an article in the terminal. Move between paragraphs with j/k and
press 'a' to analyze the focused one: the result opens in a popup next to it.

FILE is a text file whose first line is the title and whose paragraphs are
separated by blank lines. Without FILE a built-in demo article is shown.

Examples:
  # Try it without an analysis service
  verifai page --demo

  # Analyze paragraphs of your own article
  verifai page article.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPageCmd,
	}

	cmd.Flags().Bool("demo", false, "Use the built-in demo analysis service")
	cmd.Flags().Duration("demo-delay", defaultDemoDelay, "How long each demo analysis takes")
	cmd.Flags().String("url", defaultPageURL, "URL the page is shown under")
	cmd.Flags().String("log-file", filepath.Join(config.DefaultStateDir(), "verifai.log"), "Write logs to this file")

	return cmd
}

func runPageCmd(cmd *cobra.Command, args []string) error {
	useDemo, _ := cmd.Flags().GetBool("demo")
	demoDelay, _ := cmd.Flags().GetDuration("demo-delay")
	pageURL, _ := cmd.Flags().GetString("url")
	logPath, _ := cmd.Flags().GetString("log-file")

	cfgPath, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	title, paragraphs := demo.ArticleTitle, demo.ArticleParagraphs
	if len(args) == 1 {
		if title, paragraphs, err = readArticle(args[0]); err != nil {
			return err
		}
	}

	logFile, err := logging.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newLogger(cmd, logFile)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var fixedEndpoint string
	if useDemo {
		d, err := startDemo("127.0.0.1:0", demoDelay, logger)
		if err != nil {
			return err
		}
		fixedEndpoint = d.AnalyzeURL()
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return d.Shutdown(sctx)
		})
	}

	feed := ui.NewSnapshotFeed()
	rt := extension.New(extension.Options{
		Analyzer: newClient(cfgPath, cfg, fixedEndpoint, logger),
		Timeouts: background.TimeoutsFromConfig(cfg),
		Logger:   logger,
		Measurer: ui.Measurer,
		Observer: feed.Observe,
	})
	doc := overlay.NewDocument(title, paragraphs)
	tab := rt.OpenTab(pageURL, doc)
	feed.Follow(tab)

	app := ui.NewApp(ui.Config{
		Engine:     rt,
		Feed:       feed,
		Document:   doc,
		URL:        pageURL,
		Title:      title,
		Paragraphs: paragraphs,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	g.Go(func() error { return rt.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal page: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// readArticle reads a plain text article: the first non-empty line is the
// title, blank lines separate paragraphs.
func readArticle(path string) (title string, paragraphs []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read article: %w", err)
	}

	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case title == "" && line != "":
			title = line
		case line == "":
			flush()
		default:
			current = append(current, line)
		}
	}
	flush()

	if title == "" {
		return "", nil, fmt.Errorf("article %s is empty", path)
	}
	return title, paragraphs, nil
}
