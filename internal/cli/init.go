package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize nestmut storage",
		Long:  "Create the configuration and data directories, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, _, err := a.open()
			if err != nil {
				return err
			}
			if err := s.Detach(); err != nil {
				return &exitError{code: exitSysError, err: fmt.Errorf("finalize storage: %w", err)}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "nestmut initialized (%s backend, data in %s)\n", a.config.Backend, a.config.DataDir)
			return nil
		},
	}
}
