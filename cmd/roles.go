package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"inkwell/internal/registry"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the built-in role catalog",
	Run: func(cmd *cobra.Command, args []string) {
		for _, role := range registry.Default().All() {
			fmt.Printf("%-16s %-10s temp=%.1f  %s\n",
				role.ID, role.Capability, role.DefaultTemperature, role.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}
