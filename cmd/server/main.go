package main

import (
	"context"
	"flag"
	"path/filepath"

	"framewire/internal/config"
	corelog "framewire/internal/core/log"
	"framewire/internal/relay"
)

func main() {
	// 1. 解析命令行参数
	var (
		configPath = flag.String("config", "", "Path to configuration file (defaults apply when empty)")
		showHelp   = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	// 显示帮助信息
	if *showHelp {
		corelog.Info("framewire relay server")
		corelog.Info("Usage: server [options]")
		corelog.Info()
		corelog.Info("Options:")
		flag.PrintDefaults()
		corelog.Info()
		corelog.Info("Examples:")
		corelog.Info("  server                    # 使用内置默认配置")
		corelog.Info("  server -config ./config.yaml")
		corelog.Info("  server -config /path/to/config.yaml")
		return
	}

	absConfigPath := ""
	if *configPath != "" {
		var err error
		absConfigPath, err = filepath.Abs(*configPath)
		if err != nil {
			corelog.Fatalf("Failed to resolve config path: %v", err)
		}
	}

	// 2. 加载配置并初始化日志
	cfg, err := config.Load(absConfigPath)
	if err != nil {
		corelog.Fatalf("Failed to load configuration: %v", err)
	}
	if err := corelog.Init(cfg.Log.LogConfig()); err != nil {
		corelog.Fatalf("Failed to initialize logging: %v", err)
	}

	srv, err := relay.New(cfg, context.Background())
	if err != nil {
		corelog.Fatalf("Failed to create server: %v", err)
	}

	// 显示启动信息横幅（在日志初始化之后，服务启动之前）
	srv.DisplayStartupBanner(absConfigPath)

	// 3. 运行服务器（包含信号处理和优雅关闭）
	if err := srv.Run(); err != nil {
		corelog.Fatalf("Failed to run server: %v", err)
	}

	corelog.Info("framewire relay server exited gracefully")
}
