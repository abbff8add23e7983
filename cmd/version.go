package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amp-memory/amp/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Get().String())
		return nil
	},
}
