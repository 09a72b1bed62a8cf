package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"stockwatch/internal/config"
	"stockwatch/internal/logger"
	"stockwatch/internal/store"
)

// NewStateCmd creates the state management command
func NewStateCmd() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the de-duplication state",
		Long:  `Show or clear the fingerprint of the last alerted page state.`,
	}

	// Add subcommands
	stateCmd.AddCommand(newStateShowCmd())
	stateCmd.AddCommand(newStateResetCmd())

	return stateCmd
}

func newStateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the last alerted fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateShow(cmd.Context(), appConfig, cmd.OutOrStdout())
		},
	}
}

func newStateResetCmd() *cobra.Command {
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the last alerted fingerprint so the next positive pass alerts again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			return runStateReset(cmd.Context(), appConfig, confirm, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	resetCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return resetCmd
}

func openStateStore(cfg *config.Config) (store.StateStore, error) {
	stateStore, err := store.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return stateStore, nil
}

func runStateShow(ctx context.Context, cfg *config.Config, w io.Writer) error {
	stateStore, err := openStateStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stateStore.Close(); err != nil {
			logger.Error("Failed to close state store", err)
		}
	}()

	printTitle(w, "📦 Alert State")
	printField(w, "Backend", cfg.State.Backend)
	printField(w, "Path", cfg.State.Path)

	state, err := stateStore.Load(ctx)
	switch {
	case errors.Is(err, store.ErrCorruptState):
		printField(w, "Status", warnStyle.Render("corrupt (next pass treats it as a first run)"))
		return nil
	case err != nil:
		return fmt.Errorf("failed to read state: %w", err)
	case !state.Present():
		printField(w, "Status", "empty (next positive pass alerts)")
		return nil
	}

	printField(w, "Status", okStyle.Render("recorded"))
	printField(w, "Last hash", state.LastHash)
	if !state.UpdatedAt.IsZero() {
		printField(w, "Updated", state.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

func runStateReset(ctx context.Context, cfg *config.Config, confirm bool, in io.Reader, w io.Writer) error {
	if !confirm {
		fmt.Fprint(w, "⚠️  The next positive pass will alert again. Continue? [y/N]: ")
		var response string
		_, _ = fmt.Fscanln(in, &response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Fprintln(w, "State reset cancelled")
			return nil
		}
	}

	stateStore, err := openStateStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stateStore.Close(); err != nil {
			logger.Error("Failed to close state store", err)
		}
	}()

	if err := stateStore.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset state: %w", err)
	}

	fmt.Fprintln(w, okStyle.Render("✅ State reset"))
	return nil
}
