package cmd

import (
	"fmt"

	"framewire/internal/version"

	"github.com/spf13/cobra"
)

// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show detailed version information including build time and git commit.

Example:
  framewire-client version`,
	Run: runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println()
	fmt.Printf("framewire client %s\n", version.Full())
	fmt.Println()
	fmt.Println("An encrypted, optionally compressed message relay client")
	fmt.Println("supporting TCP, WebSocket, KCP, and QUIC transports.")
	fmt.Println()
}
