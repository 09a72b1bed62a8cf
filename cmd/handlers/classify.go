package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stockwatch/internal/config"
	"stockwatch/internal/core"
	"stockwatch/internal/detect"
	"stockwatch/internal/dom"
	"stockwatch/internal/fetch"
	"stockwatch/internal/fingerprint"
)

// NewClassifyCmd creates the offline classification command
func NewClassifyCmd() *cobra.Command {
	classifyCmd := &cobra.Command{
		Use:   "classify <file|url>",
		Short: "Classify saved markup or a live page without alerting",
		Long: `Run a target's classifier over a saved HTML file or a URL and print the
verdict, the page fingerprint and, for the strict strategy, the decision made
for every candidate element. Nothing is posted and no state is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetName, _ := cmd.Flags().GetString("target")
			strategy, _ := cmd.Flags().GetString("strategy")
			return runClassify(cmd.Context(), appConfig, args[0], targetName, strategy, cmd.OutOrStdout())
		},
	}

	classifyCmd.Flags().String("target", "", "Target whose phrase sets to use (default: first configured target)")
	classifyCmd.Flags().String("strategy", "", "Override the target's strategy (strict or broad)")
	return classifyCmd
}

func runClassify(ctx context.Context, cfg *config.Config, source, targetName, strategy string, w io.Writer) error {
	target, err := pickTarget(cfg, targetName)
	if err != nil {
		return err
	}
	if strategy != "" {
		target.Strategy = core.Strategy(strings.ToLower(strategy))
	}

	classifier, err := detect.New(target)
	if err != nil {
		return err
	}

	page, err := loadPage(ctx, cfg, source)
	if err != nil {
		return err
	}

	doc, err := dom.ParseString(page.HTML)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", source, err)
	}

	verdict := classifier.Classify(doc, page.URL)

	printTitle(w, "🔍 Classification")
	printField(w, "Target", target.Name)
	printField(w, "Strategy", target.Strategy)
	printField(w, "Source", page.URL)
	if title := doc.Title(); title != "" {
		printField(w, "Title", title)
	}
	printField(w, "Fingerprint", fingerprint.Of(doc.Text()))
	if verdict.Purchasable {
		printField(w, "Verdict", okStyle.Render("PURCHASABLE"))
		if e := verdict.Evidence; e != nil {
			printField(w, "Pool", e.Pool)
			printField(w, "Phrase", e.Phrase)
			if e.NodeText != "" {
				printField(w, "Node", e.NodeText)
			}
			if e.Context != "" {
				printField(w, "Context", dom.Snippet(e.Context, 120))
			}
		}
	} else {
		printField(w, "Verdict", warnStyle.Render("not purchasable"))
	}

	if target.Strategy == core.StrategyStrict {
		reports := classifier.Explain(doc)
		fmt.Fprintln(w)
		if len(reports) == 0 {
			fmt.Fprintln(w, "No candidate elements found")
			return nil
		}

		var b strings.Builder
		for i, r := range reports {
			if i > 0 {
				b.WriteByte('\n')
			}
			line := fmt.Sprintf("#%-3d %-12s %q", r.Index, r.Decision, r.Text)
			if r.Phrase != "" {
				line += fmt.Sprintf(" [%s]", r.Phrase)
			}
			b.WriteString(decisionStyle(r.Decision).Render(line))
		}
		fmt.Fprintln(w, boxStyle.Render(b.String()))
	}
	return nil
}

func decisionStyle(d detect.Decision) lipgloss.Style {
	switch d {
	case detect.DecisionAccepted:
		return okStyle
	case detect.DecisionVetoed:
		return errStyle
	default:
		return labelStyle.UnsetWidth()
	}
}

func pickTarget(cfg *config.Config, name string) (core.Target, error) {
	targets := cfg.CoreTargets()
	if len(targets) == 0 {
		return core.Target{}, fmt.Errorf("no targets configured")
	}
	if name == "" {
		return targets[0], nil
	}
	var names []string
	for _, t := range targets {
		if t.Name == name {
			return t, nil
		}
		names = append(names, t.Name)
	}
	return core.Target{}, fmt.Errorf("unknown target %q (configured: %s)", name, strings.Join(names, ", "))
}

// loadPage reads source from disk when it names an existing file and
// fetches it otherwise.
func loadPage(ctx context.Context, cfg *config.Config, source string) (*fetch.Page, error) {
	if _, err := os.Stat(source); err == nil {
		return fetch.ReadFile(source)
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return nil, fmt.Errorf("%s is neither a readable file nor an http(s) URL", source)
	}
	f := fetch.NewFetcher(cfg.FetchTimeout(), cfg.Fetch.UserAgent, cfg.Fetch.MaxBodyBytes)
	return f.Fetch(ctx, source)
}
