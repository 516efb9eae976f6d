// This file implements the `gatewaylink chat` interactive command: an
// interactive line-based chat over one gateway session, with streamed
// assistant output and automatic reconnection.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/gatewaylink/client/internal/config"
	"github.com/gatewaylink/client/internal/gwerrors"
	"github.com/gatewaylink/client/internal/session"
)

const chatUsage = `Usage: gatewaylink chat [options]

Connects to the gateway and starts an interactive chat. Lines are sent as
chat messages; streamed answers print as they arrive.

Repl commands:
  /refresh   Re-sync history from the gateway
  /health    Probe gateway health
  /abort     Abort the in-flight run
  /quit      Exit

Options:
  --config <path>        Config file (default: ~/.gatewaylink/config.toml)
  --url <ws-url>         Gateway endpoint
  --token <token>        Auth token
  --fingerprint <fp>     Pinned certificate fingerprint
  --session <key>        Session key (default: main)
  --name <name>          Display name
  --store <path>         Settings database path
  --no-reconnect         Disable automatic reconnection
`

func runChat(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, chatUsage) }
	var cfg clientConfig
	addClientFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := resolveClientConfig(fs, &cfg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Seed a starter config on first run so the next invocation needs no
	// flags. Best effort; an unwritable home dir is not fatal.
	if cfg.Config == "" {
		if path, err := config.DefaultConfigPath(); err == nil {
			if err := config.WriteDefault(path, cfg.URL); err != nil {
				fmt.Fprintf(stderr, "Warning: could not write %s: %v\n", path, err)
			}
		}
	}

	ctx := context.Background()
	st, id, err := openIdentity(ctx, &cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer st.Close()

	ctrl := session.New(session.Config{
		Dial:           makeDial(&cfg, id),
		SessionKey:     cfg.SessionKey,
		HasToken:       cfg.Token != "",
		AutoReconnect:  !cfg.NoReconnect,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RequestTimeout: cfg.RequestTimeout,
		RefreshTimeout: cfg.RefreshTimeout,
		HealthInterval: cfg.HealthInterval,
	})
	defer ctrl.Close()

	r := newRenderer(stdout, isatty.IsTerminal(os.Stdout.Fd()))
	unsubscribe := ctrl.Subscribe(r.observe)
	defer unsubscribe()

	fmt.Fprintf(stdout, "Connecting to %s (session %s)...\n", cfg.URL, cfg.SessionKey)
	if err := ctrl.Connect(ctx); err != nil {
		state := ctrl.State()
		if state.Diagnostic != nil {
			fmt.Fprintf(stderr, "Connect failed: %s\n  %s\n", state.Diagnostic.Summary, state.Diagnostic.Guidance)
		} else {
			fmt.Fprintf(stderr, "Connect failed: %v\n", err)
		}
		return 1
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return 0
		case "/refresh":
			if err := ctrl.RefreshHistory(ctx); err != nil {
				fmt.Fprintf(stderr, "Refresh failed: %s\n", gwerrors.GetMessage(err))
			}
			continue
		case "/health":
			if ctrl.CheckHealth(ctx) {
				fmt.Fprintln(stdout, "Gateway healthy")
			} else {
				fmt.Fprintln(stdout, "Gateway degraded or unreachable")
			}
			continue
		case "/abort":
			if err := ctrl.AbortSend(ctx); err != nil {
				fmt.Fprintf(stderr, "Abort failed: %s\n", gwerrors.GetMessage(err))
			}
			continue
		}

		r.drain()
		if err := ctrl.SendMessage(ctx, line); err != nil {
			fmt.Fprintf(stderr, "Send failed: %s\n", gwerrors.GetMessage(err))
			continue
		}
		r.waitTurn()
	}
	return 0
}

// renderer prints controller snapshots to the terminal. On a TTY, the
// streaming answer is printed incrementally as it grows; otherwise only
// final answers print, keeping piped output clean.
type renderer struct {
	out io.Writer
	tty bool

	mu       sync.Mutex
	banner   string
	conn     session.ConnState
	printed  map[string]int  // turn ID -> chars of assistant text already printed
	finished map[string]bool // turn ID -> terminal text printed

	turnDone chan struct{}
}

func newRenderer(out io.Writer, tty bool) *renderer {
	return &renderer{
		out:      out,
		tty:      tty,
		printed:  make(map[string]int),
		finished: make(map[string]bool),
		turnDone: make(chan struct{}, 1),
	}
}

// waitTurn blocks until the in-flight turn reaches a terminal state or
// the connection drops mid-turn.
func (r *renderer) waitTurn() {
	<-r.turnDone
}

// drain clears a stale completion signal before a new send.
func (r *renderer) drain() {
	select {
	case <-r.turnDone:
	default:
	}
}

// observe is the controller listener. It must not call back into the
// controller.
func (r *renderer) observe(s session.ControllerState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Banner != "" && s.Banner != r.banner {
		fmt.Fprintf(r.out, "\n[!] %s\n", s.Banner)
	}
	r.banner = s.Banner

	if s.Connection != r.conn {
		switch s.Connection {
		case session.ConnReconnecting:
			fmt.Fprintln(r.out, "\n[connection lost, reconnecting...]")
		case session.ConnConnected:
			if r.conn == session.ConnReconnecting {
				fmt.Fprintln(r.out, "[reconnected]")
			}
		}
		r.conn = s.Connection

		// A drop mid-turn means no terminal event is coming; release
		// the prompt instead of hanging.
		if s.Connection != session.ConnConnected && !s.IsSending {
			select {
			case r.turnDone <- struct{}{}:
			default:
			}
		}
	}

	for i := range s.Turns {
		turn := &s.Turns[i]
		if r.finished[turn.ID] {
			continue
		}

		if turn.State.IsTerminal() {
			text := turn.AssistantText
			if r.tty {
				// Print whatever suffix has not streamed yet. The merge
				// engine only ever extends the text, so the printed
				// count stays a valid offset.
				if n := r.printed[turn.ID]; n < len(text) {
					fmt.Fprint(r.out, text[n:])
				}
				fmt.Fprintln(r.out)
			} else {
				fmt.Fprintln(r.out, text)
			}
			r.finished[turn.ID] = true
			delete(r.printed, turn.ID)
			if !s.IsSending && i == len(s.Turns)-1 {
				select {
				case r.turnDone <- struct{}{}:
				default:
				}
			}
			continue
		}

		if !r.tty {
			continue
		}
		text := turn.AssistantText
		if text == session.PlaceholderText {
			continue
		}
		if n := r.printed[turn.ID]; len(text) > n {
			fmt.Fprint(r.out, text[n:])
			r.printed[turn.ID] = len(text)
		}
	}
}
