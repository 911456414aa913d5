package build

import (
	"context"
	"io"
)

// Default shell used for provisioning commands.
const defaultShell = "/bin/sh"

// Starts stage build sessions against a container runtime.
//
// The containerd-backed implementation lives in the runtime package; tests
// substitute an in-memory fake.
type Executor interface {

	// Starts a container from the base OCI archive and returns a session
	// for provisioning it. The id must be unique per stage and platform.
	StartStage(ctx context.Context, base, id, platform string) (Session, error)
}

// A running stage build container.
type Session interface {

	// Runs a shell command, returning an error when the process cannot be
	// started or exits non-zero.
	Run(ctx context.Context, shell, command string, env []string, workdir string) error

	// Creates a directory, including parents.
	MkdirAll(ctx context.Context, path string) error

	// Extracts a tar stream into destDir.
	CopyTo(ctx context.Context, r io.Reader, destDir string) error

	// Archives path as a tar stream to w.
	CopyFrom(ctx context.Context, w io.Writer, path string) error

	// Commits the filesystem state and writes an OCI archive to path, with
	// the metadata applied to the image config.
	Export(ctx context.Context, path string, meta ExportMeta) error

	// Releases the session's container and snapshot.
	Destroy(ctx context.Context)
}

// Image config values stamped onto an exported stage.
type ExportMeta struct {
	User string   // Default user for containers started from the image.
	Env  []string // Environment entries ("key=value").
}
