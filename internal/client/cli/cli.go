package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"framewire/internal/client"
	corelog "framewire/internal/core/log"
	"framewire/internal/core/safe"
	"framewire/internal/relay/message"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Console - framewire客户端交互式命令行界面
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

const prompt = "\033[32mframewire>\033[0m "

// Console 交互式控制台
type Console struct {
	client    *client.Client
	ctx       context.Context
	readline  *readline.Instance
	output    *Output
	startTime time.Time

	mu       sync.Mutex
	fatalErr error
	quitting bool
}

// NewConsole 创建控制台实例
func NewConsole(ctx context.Context, c *client.Client) (*Console, error) {
	// 检查stdin是否是TTY
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, fmt.Errorf("stdin is not a terminal (TTY required for interactive console)\n" +
			"Please run directly in a terminal, not through pipe/redirect")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     os.ExpandEnv("$HOME/.framewire_history"),
		HistoryLimit:    500,
		AutoComplete:    buildCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize readline: %w", err)
	}

	output := NewOutput(false) // 默认启用彩色

	return &Console{
		client:    c,
		ctx:       ctx,
		readline:  rl,
		output:    output,
		startTime: time.Now(),
	}, nil
}

// Start 启动交互式控制台，返回导致退出的致命错误
func (c *Console) Start() error {
	c.printWelcome()
	defer c.Stop()

	safe.GoWithContext(c.ctx, "console-ping", c.client.PingLoop)
	safe.Go("console-read", c.readMessages)

	for {
		select {
		case <-c.ctx.Done():
			corelog.Infof("Console: context cancelled, shutting down")
			return c.exitError()
		default:
			line, err := c.readline.Readline()
			if err == readline.ErrInterrupt {
				// Ctrl+C
				if len(line) == 0 {
					c.output.Info("Use 'exit' or 'quit' to leave")
					continue
				}
			} else if err == io.EOF {
				// Ctrl+D或stdin关闭，也可能是读循环断线后关掉了readline
				if !c.isQuitting() && c.exitError() == nil {
					c.output.Info("Received EOF, exiting...")
				}
				return c.exitError()
			} else if err != nil {
				corelog.Errorf("Console: readline error: %v", err)
				c.output.Error("Failed to read input: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if quit := c.executeCommand(line); quit {
				return c.exitError()
			}
		}
	}
}

// Stop 停止控制台
func (c *Console) Stop() {
	if c.readline != nil {
		c.readline.Close()
	}
}

// readMessages 读取服务器消息并打印，断线时唤醒主循环退出
func (c *Console) readMessages() {
	err := c.client.ReadLoop(c.ctx, c.printMessage)

	c.mu.Lock()
	quitting := c.quitting
	if err != nil && !quitting {
		c.fatalErr = err
	}
	c.mu.Unlock()

	if err != nil && !quitting {
		c.output.Error("Connection lost: %v", err)
	}
	// 关闭readline让阻塞中的Readline返回EOF
	c.readline.Close()
}

// printMessage 按消息类型渲染一行输出
func (c *Console) printMessage(m *message.Message) {
	// 回车加清行，避免打断正在输入的提示符
	fmt.Print("\r\033[K")
	switch m.Kind {
	case message.KindText:
		fmt.Printf("%s %s\n", colorBold("<"+m.From+">"), m.Body)
	case message.KindInfo:
		c.output.Info("%s", m.Body)
	case message.KindGoodbye:
		c.output.Warning("Server closed the session: %s", m.Body)
	case message.KindPeers:
		if len(m.Names) == 0 {
			c.output.Info("No peers online")
		} else {
			c.output.Info("%d peer(s) online: %s", len(m.Names), strings.Join(m.Names, ", "))
		}
	default:
		c.output.Plain("[%s] %s", m.Kind.String(), m.Body)
	}
}

// printWelcome 打印欢迎信息
func (c *Console) printWelcome() {
	fmt.Println("")
	c.output.Header("🚀 framewire Console")
	c.output.Plain("  Connected to %s://%s as %s", c.client.Protocol(), c.client.ServerAddr(), c.client.Name())
	c.output.Plain("  Type 'help' to see available commands")
	c.output.Plain("  Type 'exit' or 'quit' to leave")
	fmt.Println("")
}

// executeCommand 执行一行命令，返回是否退出
func (c *Console) executeCommand(commandLine string) bool {
	parts := strings.Fields(commandLine)
	if len(parts) == 0 {
		return false
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.cmdHelp(args)
	case "exit", "quit", "q":
		c.cmdExit(args)
		return true
	case "clear", "cls":
		c.cmdClear(args)
	case "send", "s":
		c.cmdSend(args)
	case "status", "st":
		c.cmdStatus(args)
	case "peers", "who":
		c.cmdPeers(args)
	default:
		c.output.Error("Unknown command: %s", cmd)
		c.output.Info("Type 'help' to see available commands")
	}
	return false
}

func (c *Console) isQuitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quitting
}

func (c *Console) markQuitting() {
	c.mu.Lock()
	c.quitting = true
	c.mu.Unlock()
}

func (c *Console) exitError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalErr
}
