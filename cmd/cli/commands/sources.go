package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecosense/invascope/internal/ingest"
)

// NewSourcesCmd creates the sources command, listing the supported platform
// adapters.
func NewSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List supported activity data sources",
		Run: func(cmd *cobra.Command, args []string) {
			for _, adapter := range ingest.Adapters() {
				fmt.Println(adapter.Platform())
			}
		},
	}
}
