package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/tylerwon/go-chat-rooms/internal/client"
	"github.com/tylerwon/go-chat-rooms/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "Chat server address")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "warn", "Log level: debug|info|warn|error")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("chat-client %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	l := logging.New(*logFormat, logging.Level(*logLevel), os.Stderr).With("app", "chat-client")
	logging.Set(l)

	sess, err := client.Dial(*addr,
		client.WithLogger(l),
		client.WithInteractive(term.IsTerminal(int(os.Stdin.Fd()))),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	fmt.Printf("connected to %s\n", *addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
