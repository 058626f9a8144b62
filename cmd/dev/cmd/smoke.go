package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// SmokeCmd runs the built cli against the simulated controller.
func SmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the cli against the simulated controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs := [][]string{
				{"--adapter", "sim", "touch", "status"},
				{"--adapter", "sim", "touch", "read", "--run"},
				{"--adapter", "sim", "touch", "watch", "--interval", "10ms", "--count", "60"},
			}
			for _, run := range runs {
				slog.Info("running", "args", run)
				c := exec.CommandContext(cmd.Context(), binary, run...)
				c.Stdout = os.Stdout
				c.Stderr = os.Stderr
				if err := c.Run(); err != nil {
					return fmt.Errorf("smoke run %v failed: %w", run, err)
				}
			}
			return nil
		},
	}
	return cmd
}
