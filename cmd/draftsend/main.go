// Command draftsend announces a local file set to a draftrecv peer over
// a control channel and streams its content over N data channels
// (spec.md §4.10/§6).
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

	cfg, err := config.ParseSendConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "draftsend: %v\n", err)
		printUsage()
		return 1
	}

	logger := logging.New("draftsend", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go awaitInterrupt(cancel)

	tx := session.NewTxSession(session.TxConfig{
		Service:      cfg.Service,
		Targets:      cfg.Targets,
		PathRoot:     cfg.Path,
		Suffix:       cfg.Suffix,
		JournalPath:  cfg.JournalPath,
		BlockSize:    cfg.BlockSize,
		BlockCount:   cfg.BlockCount,
		QueueDepth:   cfg.QueueDepth,
		ReadPoolSize: cfg.ReadPoolSize,
		DialTimeout:  cfg.DialTimeout,
		Logger:       logger,
	})

	if err := tx.Run(ctx); err != nil {
		logger.Error("send failed", "error", err)
		return 1
	}
	logger.Info("send complete")
	return 0
}

// awaitInterrupt cancels on the first SIGINT/SIGTERM and force-exits
// with code 2 on a second, per spec.md §6's exit code table.
func awaitInterrupt(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	cancel()
	<-sigCh
	os.Exit(2)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: draftsend -service host:port -target host:port [-target host:port...] -path FILE_OR_DIR [options]")
	fmt.Fprintln(os.Stderr, "  -service ADDR       control channel address")
	fmt.Fprintln(os.Stderr, "  -target ADDR        data channel address, repeatable")
	fmt.Fprintln(os.Stderr, "  -path PATH          file or directory to send")
	fmt.Fprintln(os.Stderr, "  -suffix SUFFIX      append SUFFIX to every path the receiver materializes")
	fmt.Fprintln(os.Stderr, "  -journal PATH       write a hash journal while sending")
	fmt.Fprintln(os.Stderr, "  -block-size N       buffer pool block size in bytes")
	fmt.Fprintln(os.Stderr, "  -block-count N      buffer pool block count")
	fmt.Fprintln(os.Stderr, "  -queue-depth N      bounded queue depth")
	fmt.Fprintln(os.Stderr, "  -read-pool N        concurrent reader task limit")
	fmt.Fprintln(os.Stderr, "  -dial-timeout D     connect timeout")
	fmt.Fprintln(os.Stderr, "  -log-level LEVEL    debug, info, warn, error")
	fmt.Fprintln(os.Stderr, "environment: DRAFT_SERVICE, DRAFT_TARGETS (comma-separated), DRAFT_LOG_LEVEL")
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			return true
		}
	}
	return false
}
