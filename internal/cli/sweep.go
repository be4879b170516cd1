package cli

import (
	"context"
	"encoding/json"
	"io"

	"fitquiz-assignment-service/internal/config"
	"github.com/spf13/cobra"
)

// NewSweepCmd runs a single auto-assign sweep and prints its report.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Assign every due time-interval quiz once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}

func runSweep(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.service.AutoAssignQuizzes(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
