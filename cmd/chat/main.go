package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"gemini-chat-backend/internal/chatui"
)

// terminalView prints messages as they are appended and shows a spinner
// while the bot placeholder is pending.
type terminalView struct {
	out     io.Writer
	spinner *spinner.Spinner
	user    func(a ...interface{}) string
	bot     func(a ...interface{}) string
	failed  func(a ...interface{}) string
}

func newTerminalView(out io.Writer) *terminalView {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + chatui.ThinkingText

	return &terminalView{
		out:     out,
		spinner: s,
		user:    color.New(color.FgCyan, color.Bold).SprintFunc(),
		bot:     color.New(color.FgGreen, color.Bold).SprintFunc(),
		failed:  color.New(color.FgRed).SprintFunc(),
	}
}

func (v *terminalView) Appended(_ int, m chatui.Message) {
	if m.Pending {
		v.spinner.Start()
		return
	}
	fmt.Fprintf(v.out, "%s %s\n", v.user("You:"), m.Text)
}

func (v *terminalView) Settled(_ int, m chatui.Message) {
	v.spinner.Stop()
	text := m.Text
	if text == chatui.FailureText || text == chatui.NoResponseText {
		text = v.failed(text)
	}
	fmt.Fprintf(v.out, "%s %s\n\n", v.bot("Gemini:"), text)
}

// Scroll is a no-op; the terminal follows its own output.
func (v *terminalView) Scroll() {}

func main() {
	defaultURL := os.Getenv("CHAT_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:3000"
	}

	serverURL := flag.String("url", defaultURL, "Base URL of the chat relay")
	token := flag.String("token", os.Getenv("CHAT_TOKEN"), "Bearer token, when the relay requires auth")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := chatui.NewSession(chatui.NewClient(*serverURL, *token), newTerminalView(os.Stdout))

	fmt.Printf("Chatting with %s\n", *serverURL)
	fmt.Println(`End a line with \ to continue on the next line. Ctrl+D to quit.`)
	fmt.Println()

	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		input, err := chatui.ReadInput(in)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println()
			return
		}
		if ctx.Err() != nil {
			return
		}
		session.Submit(ctx, input)
	}
}

