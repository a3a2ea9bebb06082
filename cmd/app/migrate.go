package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := loadBootstrap()
			if err != nil {
				return err
			}
			repository, err := b.openRepository(cmd.Context())
			if err != nil {
				return err
			}
			repository.Close()
			return nil
		},
	}
}
