package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available interviewer personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newPersonaStore(cfg)
		ids, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, id := range ids {
			p, err := store.Get(cmd.Context(), id)
			if err != nil {
				logger.Warn("skipping persona", "persona", id, "error", err)
				continue
			}
			fmt.Fprintf(out, "%-10s %s\n", p.ID, p.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}
