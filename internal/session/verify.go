package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/draftxfer/draft/internal/bufpool"
	"github.com/draftxfer/draft/internal/journalio"
	"github.com/draftxfer/draft/internal/pipeline"
	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/pkg/journal"
	"github.com/draftxfer/draft/pkg/wire"
)

// VerifyConfig configures a VerifySession, mirroring spec.md §4.12.
type VerifyConfig struct {
	PathRoot        string   // local tree the input journal's files are read back from
	Paths           []string // if non-empty, spot-check only these FileInfo.Path entries (SPEC_FULL.md §8)
	HasherCount     int
	BlockSize       int
	BlockCount      int
	QueueDepth      int
	KeepTempJournal bool
	Logger          *slog.Logger
}

// VerifySession re-hashes the local files named by an input journal's
// FileInfo list and diffs the result against that journal (spec.md
// §4.12).
type VerifySession struct {
	cfg VerifyConfig
}

// NewVerifySession constructs a VerifySession from cfg.
func NewVerifySession(cfg VerifyConfig) *VerifySession {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &VerifySession{cfg: cfg}
}

// Run reads input's FileInfo list, hashes every block of the
// corresponding local files into a fresh temporary journal, and returns
// the differences between that journal and input.
func (s *VerifySession) Run(ctx context.Context, input *journal.Journal) ([]journal.Difference, error) {
	infos := input.FileInfo()
	selected := infos
	if len(s.cfg.Paths) > 0 {
		selected = filterFileInfo(infos, s.cfg.Paths)
	}

	tempPath := journalio.TempJournalPath(filepath.Dir(input.Path()))
	tempJournal, err := journal.Create(tempPath, selected)
	if err != nil {
		return nil, fmt.Errorf("session: verify create temp journal: %w", err)
	}
	defer func() {
		tempJournal.Close()
		if !s.cfg.KeepTempJournal {
			os.Remove(tempPath)
		}
	}()

	pool := bufpool.New(s.cfg.BlockSize, s.cfg.BlockCount)
	defer pool.Cancel()
	hashQueue := queue.New[pipeline.BlockDescriptor](s.cfg.QueueDepth)

	stageCtx, cancelStages := context.WithCancel(ctx)
	defer cancelStages()

	var hasherWG sync.WaitGroup
	hasherErrs := make(chan error, s.cfg.HasherCount)
	for i := 0; i < s.cfg.HasherCount; i++ {
		hasherWG.Add(1)
		go func() {
			defer hasherWG.Done()
			h := pipeline.NewHasher(tempJournal, hashQueue, true)
			if err := h.Run(stageCtx); err != nil {
				hasherErrs <- err
			}
		}()
	}

	if err := s.submitReaders(ctx, selected, pool, hashQueue); err != nil {
		cancelStages()
		hasherWG.Wait()
		return nil, err
	}

	drainQueueLen(ctx, hashQueue)
	cancelStages()
	hasherWG.Wait()
	close(hasherErrs)
	for err := range hasherErrs {
		if err != nil {
			return nil, err
		}
	}

	if err := tempJournal.Sync(); err != nil {
		return nil, err
	}

	diffs, err := journal.Diff(tempJournal, input)
	if err != nil {
		return nil, err
	}
	if len(s.cfg.Paths) == 0 {
		return diffs, nil
	}

	selectedIDs := make(map[uint16]bool, len(selected))
	for _, fi := range selected {
		selectedIDs[fi.ID] = true
	}
	filtered := make([]journal.Difference, 0, len(diffs))
	for _, d := range diffs {
		if selectedIDs[d.FileID] {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// filterFileInfo keeps only the entries of infos whose Path matches one
// of paths, so a large journal can be spot-checked instead of verified
// file by file (SPEC_FULL.md §8).
func filterFileInfo(infos []wire.FileInfo, paths []string) []wire.FileInfo {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	var out []wire.FileInfo
	for _, fi := range infos {
		if want[fi.Path] {
			out = append(out, fi)
		}
	}
	return out
}

func (s *VerifySession) submitReaders(ctx context.Context, infos []wire.FileInfo, pool *bufpool.Pool, out *queue.Queue[pipeline.BlockDescriptor]) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(infos))

	for _, fi := range infos {
		if fi.Size == 0 {
			continue
		}
		path := filepath.Join(s.cfg.PathRoot, filepath.FromSlash(fi.TargetPath()))
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("session: verify open %s: %w", path, err)
		}

		wg.Add(1)
		go func(fi wire.FileInfo, f *os.File) {
			defer wg.Done()
			defer f.Close()
			r := pipeline.NewReader(f, fi.ID, pipeline.Segment{Offset: 0, Length: fi.Size}, pool, out, nil)
			if err := r.Run(ctx); err != nil {
				errs <- fmt.Errorf("session: verify reader for %s: %w", fi.Path, err)
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
