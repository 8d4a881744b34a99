package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"framewire/internal/relay/message"

	"github.com/spf13/cobra"
)

// sendCmd 一次性发送
var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Send a one-shot message and disconnect",
	Long: `Connect to the relay server, deliver a single text message to all
connected peers, then disconnect.

Example:
  framewire-client send "deploy finished"
  framewire-client -n ci-bot send build ok`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSend,
}

func runSend(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := configureLogging(cfg, false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	c, err := buildClient(cfg, ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build client: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.CloseWithError() }()

	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed: %v\n", err)
		os.Exit(1)
	}

	// 欢迎通告确认入场成功
	recvCtx, recvCancel := context.WithTimeout(ctx, 10*time.Second)
	defer recvCancel()
	welcome, err := c.Recv(recvCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server did not admit the session: %v\n", err)
		os.Exit(1)
	}
	if welcome.Kind == message.KindGoodbye {
		fmt.Fprintf(os.Stderr, "Server rejected the session: %s\n", welcome.Body)
		os.Exit(1)
	}

	body := strings.Join(args, " ")
	if err := c.Send(message.Text("", body)); err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		os.Exit(1)
	}
	if err := c.Send(message.Goodbye("one-shot send")); err != nil {
		fmt.Fprintf(os.Stderr, "Goodbye not delivered: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Message delivered to %s://%s\n", cfg.Client.Protocol, cfg.Client.Server)
}
