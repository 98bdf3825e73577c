package drivekit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Rename moves src to dst, allowing both the directory and the base name
// to change. Within one storage mount a combined change is emulated with
// the temp-directory relay; across mounts only a pure move (name
// preserved) is possible and a combined change is rejected with
// ErrCrossStorage before any mutating call.
//
// With WithReplace an existing destination is removed first, provided it
// is a file or an empty directory.
func (fs *FileSystem) Rename(ctx context.Context, src, dst string, opts ...Option) error {
	seq, err := fs.renameSequence(ctx, "rename", src, dst, false, opts)
	if err != nil {
		return err
	}
	return seq.Run(ctx)
}

// RenameAsync runs the same protocol as Rename without blocking the
// caller. The steps still execute strictly in order.
func (fs *FileSystem) RenameAsync(ctx context.Context, src, dst string, opts ...Option) <-chan error {
	seq, err := fs.renameSequence(ctx, "rename", src, dst, false, opts)
	if err != nil {
		ch := make(chan error, 1)
		ch <- err
		return ch
	}
	return seq.Go(ctx)
}

// Replace is Rename with the replace flag set.
func (fs *FileSystem) Replace(ctx context.Context, src, dst string, opts ...Option) error {
	return fs.Rename(ctx, src, dst, append(opts, WithReplace(true))...)
}

// Renames renames src to dst, then prunes the now-empty ancestors of the
// source directory.
func (fs *FileSystem) Renames(ctx context.Context, src, dst string, opts ...Option) error {
	srcAbs := fs.Abspath(src)
	dstAbs := fs.Abspath(dst)
	if err := fs.Rename(ctx, srcAbs, dstAbs, opts...); err != nil {
		return err
	}
	srcDir, _ := SplitPath(srcAbs)
	dstDir, _ := SplitPath(dstAbs)
	if srcDir != dstDir {
		// Best effort; a non-empty ancestor simply stops the pruning.
		if err := fs.RemoveDirs(ctx, srcDir, opts...); err != nil && !IsNotExist(err) {
			fs.logger.Debug("prune after rename failed",
				zap.String("dir", srcDir), zap.Error(err))
		}
	}
	return nil
}

// Move relocates src into the directory dstDir, preserving its name.
// This is the one operation allowed to cross storage mounts.
func (fs *FileSystem) Move(ctx context.Context, src, dstDir string, opts ...Option) error {
	srcAbs := fs.Abspath(src)
	_, name := SplitPath(srcAbs)
	return fs.Rename(ctx, srcAbs, NormalizePath(fs.Abspath(dstDir), name), opts...)
}

// Copy duplicates src at dst. It mirrors the rename protocol with the
// remote copy primitive, with a simpler base case because the source
// never has to be vacated.
func (fs *FileSystem) Copy(ctx context.Context, src, dst string, opts ...Option) error {
	seq, err := fs.renameSequence(ctx, "copy", src, dst, true, opts)
	if err != nil {
		return err
	}
	return seq.Run(ctx)
}

// CopyAsync runs the same protocol as Copy without blocking the caller.
func (fs *FileSystem) CopyAsync(ctx context.Context, src, dst string, opts ...Option) <-chan error {
	seq, err := fs.renameSequence(ctx, "copy", src, dst, true, opts)
	if err != nil {
		ch := make(chan error, 1)
		ch <- err
		return ch
	}
	return seq.Go(ctx)
}

// renameSequence validates a (src, dst) pair and builds the sequence of
// mutating remote calls that realizes it. All lookups happen here, up
// front; a rejected operation issues no mutation at all.
func (fs *FileSystem) renameSequence(ctx context.Context, op, src, dst string, isCopy bool, opts []Option) (*Sequence, error) {
	srcPath := fs.Abspath(src)
	dstPath := fs.Abspath(dst)
	fail := func(err error) (*Sequence, error) {
		return nil, &RenameError{Op: op, Src: srcPath, Dst: dstPath, Err: err}
	}

	if srcPath == dstPath {
		return fail(ErrInvalidPath)
	}
	if srcPath == "/" || dstPath == "/" {
		return fail(ErrInvalidPath)
	}
	if IsDescendant(dstPath, srcPath) {
		// Moving a directory into its own subtree.
		return fail(ErrPermission)
	}
	if IsDescendant(srcPath, dstPath) {
		return fail(ErrPermission)
	}
	if isRoot, err := fs.mounts.isMountRoot(ctx, srcPath); err != nil {
		return nil, err
	} else if isRoot {
		return fail(ErrPermission)
	}

	srcDir, srcName := SplitPath(srcPath)
	dstDir, dstName := SplitPath(dstPath)
	forwarded := fs.opOptions(opts)

	srcAttr, err := fs.api.Info(ctx, srcPath, forwarded...)
	if err != nil {
		return nil, err
	}

	seq := &Sequence{Op: op, Logger: fs.logger}

	dstAttr, err := fs.api.Info(ctx, dstPath, forwarded...)
	switch {
	case err == nil:
		if !ApplyOptions(opts...).Replace {
			return fail(ErrExist)
		}
		if isRoot, err := fs.mounts.isMountRoot(ctx, dstPath); err != nil {
			return nil, err
		} else if isRoot {
			return fail(ErrPermission)
		}
		if srcAttr.IsDir {
			if !dstAttr.IsDir {
				return fail(ErrNotDir)
			}
			n, err := fs.DirectoryCapacity(ctx, dstPath, opts...)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return fail(ErrNotEmpty)
			}
		} else if dstAttr.IsDir {
			return fail(ErrIsDir)
		}
		// Vacating the destination is already a mutation, so it joins
		// the sequence rather than running here.
		seq.Steps = append(seq.Steps, Step{
			Name: "remove destination",
			Do: func(ctx context.Context) error {
				return fs.api.Remove(ctx, dstDir, []string{dstName})
			},
		})
	case IsNotExist(err):
		parentAttr, err := fs.api.Info(ctx, dstDir, forwarded...)
		if err != nil {
			return nil, err
		}
		if !parentAttr.IsDir {
			return fail(ErrNotDir)
		}
	default:
		return nil, err
	}

	srcStorage, err := fs.mounts.storageOf(ctx, srcDir)
	if err != nil {
		return nil, err
	}
	dstStorage, err := fs.mounts.storageOf(ctx, dstDir)
	if err != nil {
		return nil, err
	}
	sameStorage := srcStorage.Path == dstStorage.Path

	switch {
	case srcName == dstName:
		// Pure relocation; the only case permitted across storages.
		if !sameStorage && !isCopy {
			fs.logger.Warn("cross-storage move keeps a copy on some backends",
				zap.String("src", srcPath), zap.String("dst", dstPath))
		}
		seq.Steps = append(seq.Steps, fs.transferStep(isCopy, srcDir, dstDir, srcName))

	case srcDir == dstDir && !isCopy:
		seq.Steps = append(seq.Steps, Step{
			Name: "rename in place",
			Do: func(ctx context.Context) error {
				return fs.api.Rename(ctx, srcPath, dstName)
			},
			Undo: func(ctx context.Context) error {
				return fs.api.Rename(ctx, dstPath, srcName)
			},
		})

	default:
		// Directory and name both change: no single primitive does
		// that, and the relay stays within one storage.
		if !sameStorage {
			return fail(ErrCrossStorage)
		}
		seq.Steps = append(seq.Steps, fs.relaySteps(isCopy, srcDir, srcName, dstDir, dstName)...)
	}
	return seq, nil
}

// transferStep is a single move or copy of one name between directories.
func (fs *FileSystem) transferStep(isCopy bool, srcDir, dstDir, name string) Step {
	if isCopy {
		return Step{
			Name: "copy",
			Do: func(ctx context.Context) error {
				return fs.api.Copy(ctx, srcDir, dstDir, []string{name})
			},
			Undo: func(ctx context.Context) error {
				return fs.api.Remove(ctx, dstDir, []string{name})
			},
		}
	}
	return Step{
		Name: "move",
		Do: func(ctx context.Context) error {
			return fs.api.Move(ctx, srcDir, dstDir, []string{name})
		},
		Undo: func(ctx context.Context) error {
			return fs.api.Move(ctx, dstDir, srcDir, []string{name})
		},
	}
}

// relaySteps emulates move-with-rename inside one storage: a uniquely
// named temp directory under the destination receives the file, the
// rename happens inside it, and the result moves into place. Every step
// short of the final cleanup can be undone.
func (fs *FileSystem) relaySteps(isCopy bool, srcDir, srcName, dstDir, dstName string) []Step {
	tmpName := ".dk-relay-" + uuid.NewString()
	tmpDir := NormalizePath(dstDir, tmpName)

	steps := []Step{
		{
			Name: "mkdir temp",
			Do: func(ctx context.Context) error {
				return fs.api.Mkdir(ctx, tmpDir)
			},
			Undo: func(ctx context.Context) error {
				return fs.api.Remove(ctx, dstDir, []string{tmpName})
			},
		},
	}
	if isCopy {
		steps = append(steps, Step{
			Name: "copy into temp",
			Do: func(ctx context.Context) error {
				return fs.api.Copy(ctx, srcDir, tmpDir, []string{srcName})
			},
			Undo: func(ctx context.Context) error {
				return fs.api.Remove(ctx, tmpDir, []string{srcName})
			},
		})
	} else {
		steps = append(steps, Step{
			Name: "move into temp",
			Do: func(ctx context.Context) error {
				return fs.api.Move(ctx, srcDir, tmpDir, []string{srcName})
			},
			Undo: func(ctx context.Context) error {
				return fs.api.Move(ctx, tmpDir, srcDir, []string{srcName})
			},
		})
	}
	steps = append(steps,
		Step{
			Name: "rename in temp",
			Do: func(ctx context.Context) error {
				return fs.api.Rename(ctx, NormalizePath(tmpDir, srcName), dstName)
			},
			Undo: func(ctx context.Context) error {
				return fs.api.Rename(ctx, NormalizePath(tmpDir, dstName), srcName)
			},
		},
		Step{
			Name: "move into place",
			Do: func(ctx context.Context) error {
				return fs.api.Move(ctx, tmpDir, dstDir, []string{dstName})
			},
			Undo: func(ctx context.Context) error {
				return fs.api.Move(ctx, dstDir, tmpDir, []string{dstName})
			},
		},
		Step{
			Name: "remove temp",
			Do: func(ctx context.Context) error {
				return fs.api.Remove(ctx, dstDir, []string{tmpName})
			},
		},
	)
	return steps
}
