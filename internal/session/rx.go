package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/draftxfer/draft/internal/bufpool"
	"github.com/draftxfer/draft/internal/pipeline"
	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/pkg/journal"
	"github.com/draftxfer/draft/pkg/wire"
)

// maxControlPayload bounds the TransferRequest's CBOR body as a sanity
// check, per spec.md §7's InvalidFrame policy.
const maxControlPayload = 256 << 20

// RxConfig configures one receive, mirroring spec.md §4.11.
type RxConfig struct {
	Control     Target   // control channel bind address
	Data        []Target // data channel bind addresses (len == N)
	PathRoot    string   // directory files are materialized under
	JournalPath string   // empty disables journaling
	NoWrite     bool
	BlockSize   int
	BlockCount  int
	QueueDepth  int
	HasherCount int
	Logger      *slog.Logger
}

// RxSession binds listeners, receives a TransferRequest, and writes
// incoming chunks to their declared destinations (spec.md §4.11).
type RxSession struct {
	cfg RxConfig
}

// NewRxSession constructs an RxSession from cfg.
func NewRxSession(cfg RxConfig) *RxSession {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RxSession{cfg: cfg}
}

// Run drives the receive to completion.
func (s *RxSession) Run(ctx context.Context) error {
	log := s.cfg.Logger

	controlListener, err := net.Listen("tcp", s.cfg.Control.Addr())
	if err != nil {
		return fmt.Errorf("session: rx listen control %s: %w", s.cfg.Control.Addr(), err)
	}
	defer controlListener.Close()

	dataListeners := make([]net.Listener, 0, len(s.cfg.Data))
	defer func() {
		for _, l := range dataListeners {
			l.Close()
		}
	}()
	for _, t := range s.cfg.Data {
		l, err := net.Listen("tcp", t.Addr())
		if err != nil {
			return fmt.Errorf("session: rx listen data %s: %w", t.Addr(), err)
		}
		dataListeners = append(dataListeners, l)
	}

	infos, controlConn, err := s.awaitTransferRequest(ctx, controlListener)
	if err != nil {
		return err
	}
	defer controlConn.Close()
	log.Info("rx transfer request received", "fileCount", len(infos))

	var j *journal.Journal
	if s.cfg.JournalPath != "" {
		j, err = journal.Create(s.cfg.JournalPath, infos)
		if err != nil {
			return fmt.Errorf("session: rx create journal: %w", err)
		}
		defer j.Close()
	}

	files, closeFiles, err := s.materializeFiles(infos)
	if err != nil {
		return err
	}
	defer closeFiles()

	pool := bufpool.New(s.cfg.BlockSize, s.cfg.BlockCount)
	defer pool.Cancel()
	writeQueue := queue.New[pipeline.BlockDescriptor](s.cfg.QueueDepth)
	var hashQueue *queue.Queue[pipeline.BlockDescriptor]
	if j != nil {
		hashQueue = queue.New[pipeline.BlockDescriptor](s.cfg.QueueDepth)
	}

	writerFiles := make(map[uint16]pipeline.FileWriterAt, len(files))
	for id, f := range files {
		writerFiles[id] = f
	}
	writer := pipeline.NewWriter(writerFiles, writeQueue, s.cfg.NoWrite)

	stageCtx, cancelStages := context.WithCancel(ctx)
	defer cancelStages()

	var writerWG sync.WaitGroup
	writerErrs := make(chan error, 1)
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		if err := writer.Run(stageCtx); err != nil {
			writerErrs <- err
		}
	}()

	var hasherWG sync.WaitGroup
	hasherErrs := make(chan error, s.cfg.HasherCount)
	if hashQueue != nil {
		for i := 0; i < s.cfg.HasherCount; i++ {
			hasherWG.Add(1)
			go func() {
				defer hasherWG.Done()
				h := pipeline.NewHasher(j, hashQueue, true)
				if err := h.Run(stageCtx); err != nil {
					hasherErrs <- err
				}
			}()
		}
	}

	var receiverWG sync.WaitGroup
	receiverErrs := make(chan error, len(dataListeners))
	for _, l := range dataListeners {
		receiverWG.Add(1)
		go func(l net.Listener) {
			defer receiverWG.Done()
			r := pipeline.NewReceiver(l, pool, writeQueue, hashQueue)
			if err := r.Run(stageCtx); err != nil {
				receiverErrs <- err
			}
		}(l)
	}

	receiverWG.Wait()
	close(receiverErrs)
	for err := range receiverErrs {
		if err != nil {
			cancelStages()
			writerWG.Wait()
			hasherWG.Wait()
			return err
		}
	}

	drainQueueLen(ctx, writeQueue)
	if hashQueue != nil {
		drainQueueLen(ctx, hashQueue)
	}
	cancelStages()
	writerWG.Wait()
	hasherWG.Wait()

	if err := s.finish(files, infos, j); err != nil {
		return err
	}

	close(writerErrs)
	for err := range writerErrs {
		if err != nil {
			return err
		}
	}
	close(hasherErrs)
	for err := range hasherErrs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *RxSession) awaitTransferRequest(ctx context.Context, l net.Listener) ([]wire.FileInfo, net.Conn, error) {
	dl, hasDeadline := l.(interface {
		net.Listener
		SetDeadline(time.Time) error
	})
	for {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if hasDeadline {
			dl.SetDeadline(time.Now().Add(100 * time.Millisecond))
		}
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return nil, nil, fmt.Errorf("session: rx accept control: %w", err)
		}
		header, body, err := wire.ReadFrame(conn, maxControlPayload)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("session: rx read transfer request: %w", err)
		}
		_ = header
		req, err := wire.UnmarshalTransferRequest(body)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("session: rx unmarshal transfer request: %w", err)
		}
		return req.Info, conn, nil
	}
}

// materializeFiles creates every destination file at its announced size
// under s.cfg.PathRoot and returns a fileId -> *os.File map.
func (s *RxSession) materializeFiles(infos []wire.FileInfo) (map[uint16]*os.File, func(), error) {
	files := make(map[uint16]*os.File, len(infos))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	for _, fi := range infos {
		target := filepath.Join(s.cfg.PathRoot, filepath.FromSlash(fi.TargetPath()))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("session: rx mkdir for %s: %w", target, err)
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("session: rx create %s: %w", target, err)
		}
		if err := fallocate(f, fi.Size); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("session: rx fallocate %s: %w", target, err)
		}
		files[fi.ID] = f
	}
	return files, closeAll, nil
}

// fallocate pre-allocates size bytes for f, falling back to a plain
// truncate if the platform fallocate call is unsupported for this file
// system (spec.md §4.11's "posix_fallocate each target file").
func fallocate(f *os.File, size int64) error {
	if size == 0 {
		return nil
	}
	if err := unix.Fallocate(int(f.Fd()), 0, 0, size); err != nil {
		return f.Truncate(size)
	}
	return nil
}

// finish truncates every file to its declared size, in case
// block-aligned writes overshot it, chmods it to the sender-reported
// mode (SPEC_FULL.md §8's "mode restoration on the receiver"), and
// syncs the journal (spec.md §4.11).
func (s *RxSession) finish(files map[uint16]*os.File, infos []wire.FileInfo, j *journal.Journal) error {
	byID := make(map[uint16]wire.FileInfo, len(infos))
	for _, fi := range infos {
		byID[fi.ID] = fi
	}
	for id, f := range files {
		fi := byID[id]
		if err := f.Truncate(fi.Size); err != nil {
			return fmt.Errorf("session: rx truncate fileId %d: %w", id, err)
		}
		if err := f.Chmod(os.FileMode(fi.Mode & 0777)); err != nil {
			return fmt.Errorf("session: rx chmod fileId %d: %w", id, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("session: rx sync fileId %d: %w", id, err)
		}
	}
	if j != nil {
		if err := j.Sync(); err != nil {
			return err
		}
	}
	return nil
}

func drainQueueLen(ctx context.Context, q *queue.Queue[pipeline.BlockDescriptor]) {
	for q.Len() > 0 {
		if ctx.Err() != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
