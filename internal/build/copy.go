package build

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// Executes a copy action, transferring files into the stage container.
//
// The copy string has the format "src dest" for host copies, or
// "stage:src dest" for cross-stage copies. Host sources are resolved
// relative to the build root. Cross-stage sources are read from the named
// stage's realized filesystem.
func executeCopy(ctx context.Context, sess Session, copyStr, root string, lookup sessionLookup) error {
	src, dest, err := manifest.ParseCopy(copyStr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if !filepath.IsAbs(dest) {
		return fmt.Errorf("%w: destination %q must be absolute", ErrCopy, dest)
	}

	// Ensure the destination parent directory exists.
	if destDir := filepath.Dir(dest); destDir != "" {
		if err := sess.MkdirAll(ctx, destDir); err != nil {
			return fmt.Errorf("%w: %w", ErrCopy, err)
		}
	}

	if stage, path, ok := manifest.StageSource(src); ok {
		return executeStageCopy(ctx, sess, stage, path, dest, lookup)
	}

	return executeHostCopy(ctx, sess, src, dest, root)
}

// Copies a file or directory from the host into the container.
func executeHostCopy(ctx context.Context, sess Session, src, dest, root string) error {
	if !filepath.IsAbs(src) {
		src = filepath.Join(root, src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	slog.Debug("copy", "src", src, "dest", dest, "dir", info.IsDir())

	pr, pw := io.Pipe()
	// Closing the read end unblocks the writer if CopyTo fails before
	// draining the stream.
	defer pr.Close()

	go func() {
		tw := tar.NewWriter(pw)
		var writeErr error

		if info.IsDir() {
			writeErr = writeDirToTar(tw, src, filepath.Base(dest))
		} else {
			writeErr = writeFileToTar(tw, src, filepath.Base(dest))
		}

		tw.Close()
		pw.CloseWithError(writeErr)
	}()

	if err := sess.CopyTo(ctx, pr, filepath.Dir(dest)); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	return nil
}

// Copies a path from a realized stage into the target container.
//
// The tar stream is piped directly from the source session's CopyFrom to
// the target session's CopyTo.
func executeStageCopy(ctx context.Context, sess Session, stage, path, dest string, lookup sessionLookup) error {
	srcSess, err := lookup(ctx, stage)
	if err != nil {
		return fmt.Errorf("%w: stage %q: %w", ErrCopy, stage, err)
	}

	slog.Debug("cross-stage copy", "stage", stage, "src", path, "dest", dest)

	pr, pw := io.Pipe()
	// Closing the read end unblocks the source session if CopyTo fails
	// before draining the stream.
	defer pr.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- srcSess.CopyFrom(ctx, pw, path)
		pw.Close()
	}()

	if err := sess.CopyTo(ctx, pr, filepath.Dir(dest)); err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	if err := <-errc; err != nil {
		return fmt.Errorf("%w: %w", ErrCopy, err)
	}

	return nil
}

// Writes a single file to a tar writer with the given archive name.
func writeFileToTar(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
func writeDirToTar(tw *tar.Writer, hostDir, prefix string) error {
	return filepath.WalkDir(hostDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeTarEntry(tw, path, archivePath, d)
	})
}

// Writes a single file or directory entry to a tar writer.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archivePath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}
