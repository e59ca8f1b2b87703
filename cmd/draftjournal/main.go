// Command draftjournal inspects, creates, diffs, and verifies hash
// journals (spec.md §4.12/§6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/draftxfer/draft/internal/bufpool"
	"github.com/draftxfer/draft/internal/pipeline"
	"github.com/draftxfer/draft/internal/queue"
	"github.com/draftxfer/draft/internal/session"
	"github.com/draftxfer/draft/pkg/fileset"
	"github.com/draftxfer/draft/pkg/journal"
	"github.com/draftxfer/draft/pkg/wire"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "dump-info":
		err = dumpInfo(rest)
	case "dump-hashes":
		err = dumpHashes(rest)
	case "dump-birthdate":
		err = dumpBirthdate(rest)
	case "diff":
		err = diffJournals(rest)
	case "verify":
		err = verifyJournal(rest)
	case "create":
		err = createJournal(rest)
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "draftjournal: unknown command %q\n", cmd)
		printUsage()
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "draftjournal: %v\n", err)
		return 1
	}
	return 0
}

func dumpInfo(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("dump-info requires exactly one journal path")
	}
	j, err := journal.Open(args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	count, err := j.HashCount()
	if err != nil {
		return err
	}
	infos := j.FileInfo()
	fmt.Printf("path: %s\n", j.Path())
	fmt.Printf("birthdate: %s\n", j.CreationDate())
	fmt.Printf("files: %d\n", len(infos))
	fmt.Printf("hash records: %d\n", count)
	for _, fi := range infos {
		fmt.Printf("  id=%d size=%d path=%s\n", fi.ID, fi.Size, fi.Path)
	}
	return nil
}

func dumpBirthdate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("dump-birthdate requires exactly one journal path")
	}
	j, err := journal.Open(args[0])
	if err != nil {
		return err
	}
	defer j.Close()
	fmt.Println(j.CreationDate())
	return nil
}

func dumpHashes(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("dump-hashes requires exactly one journal path")
	}
	j, err := journal.Open(args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	c, err := j.Begin()
	if err != nil {
		return err
	}
	defer c.Close()

	for c.Valid() {
		rec, ok, err := c.HashRecord()
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("fileId=%d offset=%d size=%d hash=%016x\n", rec.FileID, rec.Offset, rec.Size, rec.Hash)
		}
		if _, err := c.Seek(1, journal.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

func diffJournals(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("diff requires two journal paths")
	}
	a, err := journal.Open(args[0])
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := journal.Open(args[1])
	if err != nil {
		return err
	}
	defer b.Close()

	diffs, err := journal.Diff(a, b)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		fmt.Println("no differences")
		return nil
	}
	for _, d := range diffs {
		fmt.Printf("fileId=%d offset=%d size=%d hashA=%016x hashB=%016x\n", d.FileID, d.Offset, d.Size, d.HashA, d.HashB)
	}
	return nil
}

func verifyJournal(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	path := fs.String("path", ".", "directory the journal's files are read back from")
	hashers := fs.Int("hashers", 2, "hasher task count")
	blockSize := fs.Int("block-size", 1<<20, "buffer pool block size")
	blockCount := fs.Int("block-count", 32, "buffer pool block count")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("verify requires a journal path, and optionally a list of file paths to spot-check")
	}

	input, err := journal.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer input.Close()

	v := session.NewVerifySession(session.VerifyConfig{
		PathRoot:    *path,
		Paths:       fs.Args()[1:],
		HasherCount: *hashers,
		BlockSize:   *blockSize,
		BlockCount:  *blockCount,
		QueueDepth:  64,
	})
	diffs, err := v.Run(context.Background(), input)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		fmt.Println("verified: no differences")
		return nil
	}
	for _, d := range diffs {
		fmt.Printf("fileId=%d offset=%d size=%d hashA=%016x hashB=%016x\n", d.FileID, d.Offset, d.Size, d.HashA, d.HashB)
	}
	return fmt.Errorf("%d differences found", len(diffs))
}

func createJournal(args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	out := fs.String("out", "", "journal file to create")
	hashers := fs.Int("hashers", 2, "hasher task count")
	blockSize := fs.Int("block-size", 1<<20, "buffer pool block size")
	blockCount := fs.Int("block-count", 32, "buffer pool block count")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("create requires exactly one path")
	}
	if *out == "" {
		return fmt.Errorf("-out is required")
	}

	root := fs.Arg(0)
	infos, err := fileset.Walk(root)
	if err != nil {
		return err
	}

	j, err := journal.Create(*out, infos)
	if err != nil {
		return err
	}
	defer j.Close()

	pool := bufpool.New(*blockSize, *blockCount)
	defer pool.Cancel()
	hashQueue := queue.New[pipeline.BlockDescriptor](64)

	ctx, cancelStages := context.WithCancel(context.Background())
	defer cancelStages()

	var hasherWG sync.WaitGroup
	hasherErrs := make(chan error, *hashers)
	for i := 0; i < *hashers; i++ {
		hasherWG.Add(1)
		go func() {
			defer hasherWG.Done()
			h := pipeline.NewHasher(j, hashQueue, true)
			if err := h.Run(ctx); err != nil {
				hasherErrs <- err
			}
		}()
	}

	if err := hashFiles(ctx, root, infos, pool, hashQueue); err != nil {
		cancelStages()
		hasherWG.Wait()
		return err
	}

	for hashQueue.Len() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	cancelStages()
	hasherWG.Wait()
	close(hasherErrs)
	for err := range hasherErrs {
		if err != nil {
			return err
		}
	}
	return j.Sync()
}

func hashFiles(ctx context.Context, root string, infos []wire.FileInfo, pool *bufpool.Pool, out *queue.Queue[pipeline.BlockDescriptor]) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(infos))

	for _, fi := range infos {
		if fi.Size == 0 {
			continue
		}
		path, err := fileset.SourcePath(root, fi)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("draftjournal: open %s: %w", path, err)
		}

		wg.Add(1)
		go func(fi wire.FileInfo, f *os.File) {
			defer wg.Done()
			defer f.Close()
			r := pipeline.NewReader(f, fi.ID, pipeline.Segment{Offset: 0, Length: fi.Size}, pool, out, nil)
			if err := r.Run(ctx); err != nil {
				errs <- fmt.Errorf("draftjournal: hash %s: %w", fi.Path, err)
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

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: draftjournal <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  dump-info JOURNAL                  print metadata and file list")
	fmt.Fprintln(os.Stderr, "  dump-hashes JOURNAL                print every hash record")
	fmt.Fprintln(os.Stderr, "  dump-birthdate JOURNAL             print creation time")
	fmt.Fprintln(os.Stderr, "  diff JOURNAL_A JOURNAL_B           print differing blocks")
	fmt.Fprintln(os.Stderr, "  verify -path DIR JOURNAL [paths...] re-hash local files and diff against JOURNAL")
	fmt.Fprintln(os.Stderr, "                                      paths, if given, limit verification to those entries")
	fmt.Fprintln(os.Stderr, "  create -out JOURNAL PATH           hash a local file set into a new journal")
	fmt.Fprintln(os.Stderr, "options of verify and create go before their positional arguments")
}
