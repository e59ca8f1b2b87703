// Package fileset walks local paths into the []wire.FileInfo lists a
// TxSession advertises in its TransferRequest and a journal records in
// its metadata block. It is grounded on the retrieval pack's manifest
// walker, generalized to pull real POSIX stat fields instead of a
// content-addressed manifest ID.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/draftxfer/draft/pkg/wire"
)

// Walk walks the directory tree rooted at root and returns one
// wire.FileInfo per non-directory entry (regular files, and also
// symlinks and other special files, stat'ed without following links),
// sorted by path and numbered with sequential 1-based file IDs.
// TxSession submits its Readers in this ID order.
func Walk(root string) ([]wire.FileInfo, error) {
	return WalkPaths([]string{root})
}

// WalkPaths walks one or more file/directory paths into a single
// file set, disambiguating top-level name collisions the same way the
// manifest walker this is grounded on does: every path whose base name
// is shared with another gets an ordinal prefix (1_, 2_, ...) in
// argument order.
func WalkPaths(paths []string) ([]wire.FileInfo, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("fileset: no paths given")
	}

	type entry struct {
		relPath string
		absPath string
	}
	var entries []entry

	baseNameCount := make(map[string]int)
	absPaths := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("fileset: abs path %s: %w", p, err)
		}
		absPaths[i] = abs
		baseNameCount[filepath.Base(abs)]++
	}

	seenOfName := make(map[string]int)
	for i, abs := range absPaths {
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("fileset: stat %s: %w", paths[i], err)
		}

		base := filepath.Base(abs)
		prefix := ""
		if baseNameCount[base] > 1 {
			seenOfName[base]++
			prefix = fmt.Sprintf("%d_", seenOfName[base])
		}
		topRel := filepath.ToSlash(prefix + base)

		if !info.IsDir() {
			entries = append(entries, entry{relPath: topRel, absPath: abs})
			continue
		}

		err = filepath.WalkDir(abs, func(walkPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("fileset: walk %s: %w", walkPath, err)
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(abs, walkPath)
			if err != nil {
				return fmt.Errorf("fileset: relpath %s: %w", walkPath, err)
			}
			entries = append(entries, entry{
				relPath: filepath.ToSlash(topRel + "/" + rel),
				absPath: walkPath,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	infos := make([]wire.FileInfo, 0, len(entries))
	for i, e := range entries {
		fi, err := statFileInfo(e.relPath, e.absPath, uint16(i+1))
		if err != nil {
			return nil, err
		}
		infos = append(infos, fi)
	}
	return infos, nil
}

// statFileInfo builds a wire.FileInfo for one walked entry, pulling the
// fields spec.md §5 lists (mode, uid, gid, dev, blksize, blockcount,
// size) from the platform's raw stat structure.
func statFileInfo(relPath, absPath string, id uint16) (wire.FileInfo, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		return wire.FileInfo{}, fmt.Errorf("fileset: lstat %s: %w", absPath, err)
	}
	sysStat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return wire.FileInfo{}, fmt.Errorf("fileset: no syscall.Stat_t for %s", absPath)
	}
	return wire.FileInfo{
		Path:     relPath,
		Mode:     uint32(sysStat.Mode),
		UID:      sysStat.Uid,
		GID:      sysStat.Gid,
		Dev:      uint64(sysStat.Dev),
		BlkSize:  int64(sysStat.Blksize),
		BlkCount: sysStat.Blocks,
		Size:     info.Size(),
		ID:       id,
	}, nil
}

// SourcePath maps a wire.FileInfo produced by Walk(root) back to its
// absolute path on disk, reversing the top-level-basename prefix Walk
// applies to every relative path.
func SourcePath(root string, fi wire.FileInfo) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("fileset: abs path %s: %w", root, err)
	}
	base := filepath.Base(abs)
	if fi.Path == base {
		return abs, nil
	}
	prefix := base + "/"
	if len(fi.Path) > len(prefix) && fi.Path[:len(prefix)] == prefix {
		return filepath.Join(filepath.Dir(abs), filepath.FromSlash(fi.Path)), nil
	}
	return "", fmt.Errorf("fileset: %q is not under root %q", fi.Path, root)
}

// ApplySuffix sets FileInfo.Suffix on every entry of infos, giving the
// receiver a per-target rename hint distinct from the announced Path
// (SPEC_FULL.md §8's "per-target path suffix", mirroring the original
// implementation's sender-side -suffix option). A no-op when suffix is
// empty.
func ApplySuffix(infos []wire.FileInfo, suffix string) []wire.FileInfo {
	if suffix == "" {
		return infos
	}
	out := make([]wire.FileInfo, len(infos))
	for i, fi := range infos {
		fi.Suffix = suffix
		out[i] = fi
	}
	return out
}

// TotalSize returns the sum of all file sizes in infos.
func TotalSize(infos []wire.FileInfo) int64 {
	var total int64
	for _, fi := range infos {
		total += fi.Size
	}
	return total
}
