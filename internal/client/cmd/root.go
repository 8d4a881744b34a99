// Package cmd 提供 framewire 客户端的命令框架
package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"framewire/internal/client"
	"framewire/internal/config"
	coreerrors "framewire/internal/core/errors"
	corelog "framewire/internal/core/log"
	"framewire/internal/transport"
	"framewire/internal/version"

	"github.com/spf13/cobra"
)

// 全局标志
var (
	serverAddr    string
	transportName string
	clientName    string
	configFile    string
	logFile       string
)

// rootCmd 代表根命令
var rootCmd = &cobra.Command{
	Use:   "framewire-client",
	Short: "framewire - encrypted message relay client",
	Long: `framewire client connects to a relay server over an encrypted,
optionally compressed packet stream.

Quick Start:
  framewire-client console              Start the interactive console
  framewire-client send "hello"         Send a one-shot message
  framewire-client -s host:7000 console Connect to a specific server`,
	Version: version.Short(),
}

// Execute 执行根命令
func Execute() {
	// 全局 panic recovery
	defer func() {
		if r := recover(); r != nil {
			corelog.Errorf("FATAL: main goroutine panic recovered: %v", r)
			corelog.Errorf("Stack trace:\n%s", string(debug.Stack()))
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "", "Server address (e.g., localhost:7000)")
	rootCmd.PersistentFlags().StringVarP(&transportName, "transport", "t", "", "Transport protocol: tcp/websocket/ws/kcp/quic")
	rootCmd.PersistentFlags().StringVarP(&clientName, "name", "n", "", "Display name announced to the server")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "Log file path")

	// 添加子命令
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadClientConfig 加载配置并应用命令行覆盖
func loadClientConfig() (*config.Root, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	// 命令行参数覆盖配置文件
	if serverAddr != "" {
		cfg.Client.Server = serverAddr
	}
	if transportName != "" {
		cfg.Client.Protocol = normalizeProtocol(transportName)
	}
	if clientName != "" {
		cfg.Client.Name = clientName
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}

	if !transport.IsProtocolAvailable(cfg.Client.Protocol) {
		return nil, coreerrors.Newf(coreerrors.CodeConfigError,
			"unknown transport %q, available: %s",
			cfg.Client.Protocol, strings.Join(transport.GetAvailableProtocolNames(), ", "))
	}
	return cfg, nil
}

// normalizeProtocol 规范化协议名称
func normalizeProtocol(protocol string) string {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	if protocol == "ws" {
		return "websocket"
	}
	return protocol
}

// configureLogging 配置日志，forceFile 时强制写文件保持终端干净
func configureLogging(cfg *config.Root, forceFile bool) error {
	logCfg := cfg.Log.LogConfig()
	if forceFile && logCfg.Output != "file" {
		logCfg.Output = "file"
		logCfg.File = "framewire-client.log"
	}
	return corelog.Init(logCfg)
}

// buildClient 根据配置创建客户端，parentCtx 取消时连接随之关闭
func buildClient(cfg *config.Root, parentCtx context.Context) (*client.Client, error) {
	opts, err := cfg.Stream.BuildOptions()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Client, opts, corelog.Default(), parentCtx), nil
}
