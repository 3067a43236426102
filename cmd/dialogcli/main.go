// Command dialogcli runs one dialog on the terminal. Typed lines are final
// transcripts, ":x" presses key x and "@/path" reports a location change.
// With -remote it inspects a running service instead.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ibsar/voicedialog/internal/api"
	"github.com/ibsar/voicedialog/internal/logging"
	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/dialog"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/nlu"
	"github.com/ibsar/voicedialog/pkg/transcript"
)

func main() {
	var (
		backendURL = flag.String("backend", "http://localhost:4000/api", "banking and shopping API base URL")
		menuDir    = flag.String("menus", "", "directory of menu YAML overrides")
		start      = flag.String("location", "/", "starting location")
		classifier = flag.String("classifier", "keyword", "fallback classifier: none, keyword or llm")
		logLevel   = flag.String("log-level", "warn", "log level")
		remote     = flag.String("remote", "", "service URL; prints its sessions and stats and exits")
		verbose    = flag.Bool("v", false, "print state transitions")
	)
	flag.Parse()

	closer, err := logging.Setup(logging.Options{Level: *logLevel, Stderr: os.Stderr})
	if err != nil {
		log.Fatalf("setting up logging: %v", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *remote != "" {
		if err := inspect(ctx, os.Stdout, *remote); err != nil {
			log.Fatalf("inspect: %v", err)
		}
		return
	}

	loader := menu.NewLoader(*menuDir)
	if _, err := loader.Load(); err != nil {
		log.Fatalf("loading menus: %v", err)
	}
	cls, err := nlu.Open(ctx, *classifier, nlu.Options{
		LLM:           nlu.LLMConfig{APIKey: os.Getenv("LLM_API_KEY"), Model: "gpt-4o-mini"},
		MinConfidence: dialog.DefaultConfig().MinIntentConfidence,
	})
	if err != nil {
		log.Fatalf("opening classifier: %v", err)
	}

	con := newConsole(os.Stdout, *start)
	pub := events.NewPublisher(nil, "dialogcli", "")
	defer pub.Close()
	if *verbose {
		go traceTransitions(con, pub.Subscribe("trace", 64, events.StateTransition))
	}
	sup, err := dialog.New(dialog.DefaultConfig(), dialog.Deps{
		Recognizer: con,
		Speaker:    con,
		Navigator:  con,
		Focuser:    con,
		Backend:    backend.NewClient(*backendURL, backend.WithHTTPClient(&http.Client{Timeout: 10 * time.Second})),
		Menus:      loader,
		Classifier: cls,
		Journal:    transcript.NewMemoryStore(0),
		Publisher:  pub,
	})
	if err != nil {
		log.Fatalf("creating supervisor: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	feed(ctx, os.Stdin, sup)
	stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("dialog stopped: %v", err)
	}
}

// input is the part of a supervisor the terminal drives.
type input interface {
	PushTranscript(text string, final bool)
	PushKey(key string)
	NotifyLocation(location string)
}

func feed(ctx context.Context, r io.Reader, in input) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, ":") && len(line) > 1:
			in.PushKey(line[1:])
		case strings.HasPrefix(line, "@/"):
			in.NotifyLocation(line[1:])
		default:
			in.PushTranscript(line, true)
		}
	}
}

func traceTransitions(c *console, ch <-chan events.Envelope) {
	for env := range ch {
		var tr events.StateTransitionData
		if err := sonic.Unmarshal(env.Data, &tr); err != nil {
			continue
		}
		c.printf("[%s -> %s on %s at %s]\n", tr.FromState, tr.ToState, tr.TriggerEvent, tr.Location)
	}
}

func inspect(ctx context.Context, w io.Writer, baseURL string) error {
	client := api.NewClient(http.DefaultClient, strings.TrimRight(baseURL, "/"))
	list, err := client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	stats, err := client.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	out, err := sonic.ConfigStd.MarshalIndent(map[string]any{"sessions": list, "stats": stats.Stats}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
