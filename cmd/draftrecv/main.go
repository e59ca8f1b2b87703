// Command draftrecv binds a control channel and N data channels,
// accepts one draftsend peer's announced file set, and materializes
// the incoming chunks to disk (spec.md §4.11/§6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/draftxfer/draft/internal/config"
	"github.com/draftxfer/draft/internal/logging"
	"github.com/draftxfer/draft/internal/session"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if hasHelpFlag(args) {
		printUsage()
		return 0
	}

	cfg, err := config.ParseRecvConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "draftrecv: %v\n", err)
		printUsage()
		return 1
	}

	logger := logging.New("draftrecv", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go awaitInterrupt(cancel)

	rx := session.NewRxSession(session.RxConfig{
		Control:     cfg.Control,
		Data:        cfg.Data,
		PathRoot:    cfg.Path,
		JournalPath: cfg.JournalPath,
		NoWrite:     cfg.NoWrite,
		BlockSize:   cfg.BlockSize,
		BlockCount:  cfg.BlockCount,
		QueueDepth:  cfg.QueueDepth,
		HasherCount: cfg.HasherCount,
		Logger:      logger,
	})

	if err := rx.Run(ctx); err != nil {
		logger.Error("receive failed", "error", err)
		return 1
	}
	logger.Info("receive complete")
	return 0
}

func awaitInterrupt(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	cancel()
	<-sigCh
	os.Exit(2)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: draftrecv -control host:port -data host:port [-data host:port...] [options]")
	fmt.Fprintln(os.Stderr, "  -control ADDR       control channel bind address")
	fmt.Fprintln(os.Stderr, "  -data ADDR          data channel bind address, repeatable")
	fmt.Fprintln(os.Stderr, "  -path DIR           directory to materialize received files under (default .)")
	fmt.Fprintln(os.Stderr, "  -journal PATH       write a hash journal while receiving")
	fmt.Fprintln(os.Stderr, "  -no-write           consume chunks without writing them to disk")
	fmt.Fprintln(os.Stderr, "  -block-size N       buffer pool block size in bytes")
	fmt.Fprintln(os.Stderr, "  -block-count N      buffer pool block count")
	fmt.Fprintln(os.Stderr, "  -queue-depth N      bounded queue depth")
	fmt.Fprintln(os.Stderr, "  -hashers N          hasher task count (used only when -journal is set)")
	fmt.Fprintln(os.Stderr, "  -log-level LEVEL    debug, info, warn, error")
	fmt.Fprintln(os.Stderr, "environment: DRAFT_CONTROL, DRAFT_DATA (comma-separated), DRAFT_LOG_LEVEL")
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			return true
		}
	}
	return false
}
