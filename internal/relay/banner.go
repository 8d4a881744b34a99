package relay

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"framewire/internal/transport"
	"framewire/internal/version"
)

const bannerWidth = 56

var (
	bannerCyan  = color.New(color.FgCyan).SprintFunc()
	bannerBold  = color.New(color.Bold).SprintFunc()
	bannerGreen = color.New(color.FgGreen).SprintFunc()
	bannerFaint = color.New(color.Faint).SprintFunc()
)

// DisplayStartupBanner 打印启动横幅
//
// 在日志初始化之后、Run 之前调用。
func (s *Server) DisplayStartupBanner(configPath string) {
	fmt.Println()
	fmt.Printf("  %s  %s\n", bannerCyan("▗▐ framewire"), bannerFaint("relay server "+version.Full()))
	fmt.Println(bannerFaint("  " + strings.Repeat("─", bannerWidth)))

	configLine := configPath
	if configLine == "" {
		configLine = "(defaults)"
	}
	fmt.Printf("  %-14s %s\n", bannerBold("Config:"), configLine)
	fmt.Printf("  %-14s %s\n", bannerBold("Mode:"), s.cfg.Server.Mode)
	fmt.Printf("  %-14s %d sessions, idle timeout %s\n", bannerBold("Limits:"),
		s.cfg.Server.MaxSessions, s.cfg.Server.IdleTimeout)
	if s.cfg.Server.WriteRate > 0 {
		fmt.Printf("  %-14s %d bytes/s per session\n", bannerBold("Throttle:"), s.cfg.Server.WriteRate)
	}
	fmt.Printf("  %-14s %s\n", bannerBold("Cipher:"), s.opts.Cipher.Name())
	fmt.Println()

	fmt.Println(bannerBold("  Listeners"))
	for _, proto := range transport.GetAvailableProtocolNames() {
		cfg, ok := s.cfg.Server.Protocols.Lookup(proto)
		if !ok {
			continue
		}
		if cfg.Enabled {
			fmt.Printf("  %-12s %-22s %s\n", strings.ToUpper(proto)+":", cfg.Address, bannerGreen("✓ enabled"))
		} else {
			fmt.Printf("  %-12s %-22s %s\n", strings.ToUpper(proto)+":", "", bannerFaint("✗ disabled"))
		}
	}
	if s.cfg.Server.Status.Enabled {
		fmt.Printf("  %-12s %-22s %s\n", "Status:", "http://"+s.cfg.Server.Status.Listen, bannerGreen("✓ enabled"))
	}
	fmt.Println(bannerFaint("  " + strings.Repeat("─", bannerWidth)))
	fmt.Println()
}
