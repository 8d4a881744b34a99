package cli

import (
	"fmt"
	"strings"
	"time"

	corelog "framewire/internal/core/log"
	"framewire/internal/relay/message"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// 控制台命令
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// cmdHelp 显示帮助
func (c *Console) cmdHelp(args []string) {
	c.output.Header("📖 Available Commands")

	fmt.Println("  General:")
	fmt.Println("    help, h, ?              Show this help message")
	fmt.Println("    status, st              Show connection status and traffic")
	fmt.Println("    clear, cls              Clear screen")
	fmt.Println("    exit, quit, q           Say goodbye and leave")
	fmt.Println("")
	fmt.Println("  Messaging:")
	fmt.Println("    send <text>, s <text>   Send a text message to all peers")
	fmt.Println("    peers, who              List peers currently online")
	fmt.Println("")
	c.output.Info("Incoming messages are printed as they arrive")
	fmt.Println("")
}

// cmdExit 退出控制台
func (c *Console) cmdExit(args []string) {
	c.markQuitting()

	if err := c.client.Send(message.Goodbye("client exit")); err != nil {
		corelog.Debugf("Console: goodbye not delivered: %v", err)
	}

	uptime := time.Since(c.startTime)
	c.output.Success("Goodbye! (Session time: %s)", FormatDuration(uptime))
}

// cmdClear 清屏
func (c *Console) cmdClear(args []string) {
	// 使用ANSI转义序列清屏
	fmt.Print("\033[H\033[2J")
	c.printWelcome()
}

// cmdSend 发送文本消息
func (c *Console) cmdSend(args []string) {
	if len(args) == 0 {
		c.output.Warning("Usage: send <text>")
		return
	}

	body := strings.Join(args, " ")
	if err := c.client.Send(message.Text("", body)); err != nil {
		c.output.Error("Send failed: %v", err)
	}
}

// cmdStatus 显示连接状态与流量统计
func (c *Console) cmdStatus(args []string) {
	c.output.Header("📊 Connection Status")

	if c.client.IsConnected() {
		c.output.KeyValue("Connection", colorSuccess("✅ Connected"))
	} else {
		c.output.KeyValue("Connection", colorError("❌ Disconnected"))
	}
	c.output.KeyValue("Server", c.client.ServerAddr())
	c.output.KeyValue("Protocol", c.client.Protocol())
	c.output.KeyValue("Name", c.client.Name())
	c.output.KeyValue("Session Time", FormatDuration(time.Since(c.startTime)))

	if meter := c.client.Meter(); meter != nil {
		stats := meter.Snapshot()
		fmt.Println("")
		c.output.KeyValue("Frames Sent", fmt.Sprintf("%d", stats.FramesOut))
		c.output.KeyValue("Frames Received", fmt.Sprintf("%d", stats.FramesIn))
		c.output.KeyValue("Bytes Sent", FormatBytes(stats.BytesOut))
		c.output.KeyValue("Bytes Received", FormatBytes(stats.BytesIn))
	}

	fmt.Println("")
}

// cmdPeers 向服务器请求在线名单，应答由读循环异步打印
func (c *Console) cmdPeers(args []string) {
	if err := c.client.Send(message.PeersQuery()); err != nil {
		c.output.Error("Peers query failed: %v", err)
	}
}
