package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/draftxfer/draft/internal/bufpool"
	"github.com/draftxfer/draft/internal/pipeline"
	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/pkg/fileset"
	"github.com/draftxfer/draft/pkg/journal"
	"github.com/draftxfer/draft/pkg/wire"
)

// TxConfig configures one send, mirroring spec.md §4.10's SessionConfig.
type TxConfig struct {
	Service      Target   // control channel endpoint
	Targets      []Target // data channel endpoints
	PathRoot     string
	Suffix       string // appended to every FileInfo.Path the receiver materializes under (SPEC_FULL.md §8)
	JournalPath  string // empty disables journaling
	BlockSize    int
	BlockCount   int
	QueueDepth   int
	ReadPoolSize int
	DialTimeout  time.Duration
	Logger       *slog.Logger
}

// TxSession connects to a receiver, announces its file set over the
// control channel, and streams file content over the data channels
// (spec.md §4.10).
type TxSession struct {
	cfg TxConfig
}

// NewTxSession constructs a TxSession from cfg.
func NewTxSession(cfg TxConfig) *TxSession {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TxSession{cfg: cfg}
}

// Run drives the send to completion: dial, announce, stream, finish. It
// returns the first fatal error encountered, or nil on success.
func (s *TxSession) Run(ctx context.Context) error {
	log := s.cfg.Logger

	controlConn, err := net.DialTimeout("tcp", s.cfg.Service.Addr(), s.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("session: tx dial control %s: %w", s.cfg.Service.Addr(), err)
	}
	defer controlConn.Close()

	dataConns := make([]net.Conn, 0, len(s.cfg.Targets))
	defer func() {
		for _, c := range dataConns {
			c.Close()
		}
	}()
	for _, t := range s.cfg.Targets {
		conn, err := net.DialTimeout("tcp", t.Addr(), s.cfg.DialTimeout)
		if err != nil {
			return fmt.Errorf("session: tx dial data %s: %w", t.Addr(), err)
		}
		dataConns = append(dataConns, conn)
	}

	infos, err := fileset.Walk(s.cfg.PathRoot)
	if err != nil {
		return fmt.Errorf("session: tx walk %s: %w", s.cfg.PathRoot, err)
	}
	infos = fileset.ApplySuffix(infos, s.cfg.Suffix)
	log.Info("tx file set gathered", "count", len(infos), "totalBytes", fileset.TotalSize(infos))

	var j *journal.Journal
	if s.cfg.JournalPath != "" {
		j, err = journal.Create(s.cfg.JournalPath, infos)
		if err != nil {
			return fmt.Errorf("session: tx create journal: %w", err)
		}
		defer j.Close()
	}

	if err := s.announce(controlConn, infos); err != nil {
		return err
	}

	pool := bufpool.New(s.cfg.BlockSize, s.cfg.BlockCount)
	defer pool.Cancel()
	txQueue := queue.New[pipeline.BlockDescriptor](s.cfg.QueueDepth)

	senderCtx, cancelSenders := context.WithCancel(ctx)
	defer cancelSenders()

	var senderWG sync.WaitGroup
	senderErrs := make(chan error, len(dataConns))
	for _, conn := range dataConns {
		senderWG.Add(1)
		go func(c net.Conn) {
			defer senderWG.Done()
			sender := pipeline.NewSender(c, txQueue, j)
			if err := sender.Run(senderCtx); err != nil {
				senderErrs <- err
			}
		}(conn)
	}

	if err := s.submitReaders(ctx, infos, pool, txQueue); err != nil {
		cancelSenders()
		senderWG.Wait()
		return err
	}

	s.drainQueue(ctx, txQueue)
	cancelSenders()
	senderWG.Wait()
	close(senderErrs)
	for err := range senderErrs {
		if err != nil {
			return err
		}
	}

	if j != nil {
		if err := j.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// announce sends the TransferRequest as a single ChunkHeader-framed
// chunk on the control channel (spec.md §3/§6: control and data share
// framing so parsing code is shared).
func (s *TxSession) announce(conn net.Conn, infos []wire.FileInfo) error {
	req := wire.NewTransferRequest(infos)
	body, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("session: tx marshal transfer request: %w", err)
	}
	header := wire.NewChunkHeader(0, 0, uint64(len(body)), 0)
	if err := wire.WriteFrame(conn, header, body); err != nil {
		return fmt.Errorf("session: tx send transfer request: %w", err)
	}
	return nil
}

// submitReaders opens one Reader per regular, non-empty file and runs
// them across a bounded worker pool (spec.md §4.10's "bounded in both
// task concurrency and queue depth").
func (s *TxSession) submitReaders(ctx context.Context, infos []wire.FileInfo, pool *bufpool.Pool, out *queue.Queue[pipeline.BlockDescriptor]) error {
	sem := make(chan struct{}, s.cfg.ReadPoolSize)
	var wg sync.WaitGroup
	errs := make(chan error, len(infos))

	for _, fi := range infos {
		if fi.Size == 0 || !isRegularFile(fi.Mode) {
			continue
		}
		path, err := fileset.SourcePath(s.cfg.PathRoot, fi)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("session: tx open %s: %w", path, err)
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(fi wire.FileInfo, f *os.File) {
			defer wg.Done()
			defer f.Close()
			defer func() { <-sem }()
			r := pipeline.NewReader(f, fi.ID, pipeline.Segment{Offset: 0, Length: fi.Size}, pool, out, nil)
			if err := r.Run(ctx); err != nil {
				errs <- fmt.Errorf("session: tx reader for %s: %w", fi.Path, err)
			}
		}(fi, f)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// drainQueue waits until out has been fully consumed by the Sender set,
// or ctx is cancelled.
func (s *TxSession) drainQueue(ctx context.Context, out *queue.Queue[pipeline.BlockDescriptor]) {
	for out.Len() > 0 {
		if ctx.Err() != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func isRegularFile(mode uint32) bool {
	return mode&syscall.S_IFMT == syscall.S_IFREG
}
