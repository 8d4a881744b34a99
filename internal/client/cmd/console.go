package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"framewire/internal/client/cli"
	corelog "framewire/internal/core/log"

	"github.com/spf13/cobra"
)

// consoleCmd 交互式控制台
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive console",
	Long: `Connect to the relay server and start an interactive console.

Incoming messages are printed as they arrive. Type 'help' inside the
console to see the available commands.

Example:
  framewire-client console
  framewire-client -s relay.example.com:7000 -n alice console`,
	Run: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 控制台模式日志写文件，避免污染终端
	if err := configureLogging(cfg, true); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	c, err := buildClient(cfg, ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build client: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.CloseWithError() }()

	fmt.Fprintf(os.Stderr, "\nConnecting to %s://%s...\n", cfg.Client.Protocol, cfg.Client.Server)
	if err := c.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "\nConnection cancelled\n")
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "\nConnection failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Please check your network or specify the server with --server\n")
		os.Exit(1)
	}

	console, err := cli.NewConsole(ctx, c)
	if err != nil {
		corelog.Errorf("Console initialization failed: %v", err)
		fmt.Fprintf(os.Stderr, "Failed to initialize console: %v\n", err)
		os.Exit(1)
	}

	// 阻塞直到用户退出或连接断开
	if err := console.Start(); err != nil {
		corelog.Errorf("Console: connection error: %v", err)
		os.Exit(1)
	}
}
