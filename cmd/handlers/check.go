package handlers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"stockwatch/internal/config"
	"stockwatch/internal/fetch"
	"stockwatch/internal/logger"
	"stockwatch/internal/messaging"
	"stockwatch/internal/monitor"
	"stockwatch/internal/store"
)

// NewCheckCmd creates the single-pass command
func NewCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run one monitoring pass over every configured target",
		Long: `Fetch every configured target page in order, classify it and, on the first
purchasable signal whose page state differs from the last alerted one, post an
alert and record the new state.

With --dry-run the pass classifies and fingerprints but neither posts an alert
nor writes state, and no webhook needs to be configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return runCheck(cmd.Context(), appConfig, dryRun, cmd.OutOrStdout())
		},
	}

	checkCmd.Flags().Bool("dry-run", false, "Classify and fingerprint only; do not notify or save state")
	return checkCmd
}

func runCheck(ctx context.Context, cfg *config.Config, dryRun bool, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m, stateStore, err := buildMonitor(cfg, dryRun)
	if err != nil {
		return err
	}
	defer func() {
		if err := stateStore.Close(); err != nil {
			logger.Error("Failed to close state store", err)
		}
	}()

	out := m.Run(ctx)
	printOutcome(w, out)
	return nil
}

// buildMonitor wires the configured collaborators into a coordinator.
// Delivery settings are only required when alerts can actually be sent.
func buildMonitor(cfg *config.Config, dryRun bool) (*monitor.Monitor, store.StateStore, error) {
	if !dryRun {
		if err := cfg.ValidateForRun(); err != nil {
			return nil, nil, err
		}
	}

	platform := messaging.MessagePlatform(cfg.Notify.Platform)
	if cfg.Notify.WebhookURL != "" {
		if err := messaging.ValidateWebhookURL(platform, cfg.Notify.WebhookURL); err != nil {
			logger.Warn("Webhook URL does not look like a "+string(platform)+" webhook", "error", err.Error())
		}
	}

	stateStore, err := store.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	deps := monitor.Deps{
		Fetcher: fetch.NewFetcher(cfg.FetchTimeout(), cfg.Fetch.UserAgent, cfg.Fetch.MaxBodyBytes),
		Store:   stateStore,
	}
	if !dryRun {
		client := messaging.NewMessagingClient(platform, cfg.Notify.WebhookURL, cfg.NotifyTimeout())
		client.Username = cfg.Notify.Username
		client.AvatarURL = cfg.Notify.AvatarURL
		client.IconEmoji = cfg.Notify.IconEmoji
		deps.Notifier = client
	}

	m, err := monitor.New(monitor.Config{
		Targets:  cfg.CoreTargets(),
		Platform: platform,
		DryRun:   dryRun,
	}, deps)
	if err != nil {
		_ = stateStore.Close()
		return nil, nil, err
	}
	return m, stateStore, nil
}

func printOutcome(w io.Writer, out monitor.Outcome) {
	switch {
	case out.Phase == monitor.PhaseNotified && out.Delivered:
		printTitle(w, okStyle.Render("🎉 Purchasable signal, alert delivered"))
	case out.Phase == monitor.PhaseNotified:
		printTitle(w, errStyle.Render("⚠️  Purchasable signal, alert delivery failed"))
	case out.Phase == monitor.PhaseSuppressed:
		printTitle(w, "🔁 Purchasable signal unchanged, alert suppressed")
	case out.DryRun && out.Positive():
		printTitle(w, warnStyle.Render("🧪 Dry run: purchasable signal would be alerted"))
	default:
		printTitle(w, "💤 No purchasable signal")
	}

	printField(w, "Run", out.RunID)
	if out.Positive() {
		printField(w, "Target", out.Verdict.Target)
		printField(w, "URL", out.Verdict.URL)
		printField(w, "Fingerprint", out.Fingerprint)
		if e := out.Verdict.Evidence; e != nil {
			printField(w, "Evidence", fmt.Sprintf("%q via %s", e.Phrase, e.Pool))
		}
	}
	if out.PreviousHash != "" {
		printField(w, "Last alerted", out.PreviousHash)
	}
	if out.Phase == monitor.PhaseNotified {
		printField(w, "State saved", out.StateSaved)
	}
	for _, f := range out.FetchErrors {
		printField(w, "Fetch error", warnStyle.Render(fmt.Sprintf("%s: %v", f.URL, f.Err)))
	}
	if out.StateErr != nil {
		printField(w, "State error", warnStyle.Render(out.StateErr.Error()))
	}
	if out.DeliveryErr != nil {
		printField(w, "Delivery", errStyle.Render(out.DeliveryErr.Error()))
	}
	if out.Err != nil {
		printField(w, "Stopped", out.Err.Error())
	}
	printField(w, "Duration", out.Duration.Round(time.Millisecond))
}
