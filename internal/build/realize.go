package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/stagehandhq/stagehandd/internal/cache"
	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/manifest"
	"github.com/stagehandhq/stagehandd/internal/paths"
)

// Filename of the OCI archive produced for the target stage.
const exportFilename = "image.tar"

// Holds shared state for realizing all stages of a graph.
type builder struct {
	exec      Executor
	g         *graph.Graph
	resource  string
	output    string
	root      string
	platforms []string
	cache     *cache.Cache

	mu       sync.Mutex
	sessions []Session // All stage sessions across all platforms, destroyed after the build completes.
}

// Tracks one stage's realization for a single platform.
//
// The archive path, cache key, and error are published before done is
// closed; dependents only read them after done fires, so publication is
// atomic from their perspective.
type stageNode struct {
	stage *graph.Stage

	done    chan struct{}
	archive string        // Exported stage archive, valid when err is nil.
	key     digest.Digest // Cache key, doubles as the content identity for descendants.
	err     error

	// Source-session publication. All reads and writes of sess/sessErr go
	// through sessOnce: a built stage arms it with its own session, a
	// cache-hit stage opens one lazily on first cross-stage copy.
	sessOnce sync.Once
	sess     Session
	sessErr  error
}

// Creates a new [builder] from the given options.
func newBuilder(opts Options) *builder {
	return &builder{
		exec:      opts.Executor,
		g:         opts.Graph,
		resource:  opts.Resource,
		output:    opts.Output,
		root:      opts.Root,
		platforms: opts.Platforms,
		cache:     opts.Cache,
	}
}

// Realizes the graph end-to-end.
//
// Each target platform is realized independently. All stage sessions are
// destroyed when the build completes.
func (b *builder) build(ctx context.Context) (*Result, error) {
	defer b.destroySessions(ctx)

	for _, platform := range b.platforms {
		if err := b.buildPlatform(ctx, platform); err != nil {
			return nil, fmt.Errorf("%w: platform %s: %w", ErrBuild, platform, err)
		}
	}

	return &Result{Output: b.output, Metadata: b.g.Metadata()}, nil
}

// Realizes all stages of the graph for a single platform.
//
// Every stage gets its own goroutine; each waits for the stages it depends
// on, so independent stages realize in parallel while a shared ancestor
// realizes exactly once before any dependent begins.
func (b *builder) buildPlatform(ctx context.Context, platform string) error {
	slog.Info("building platform", "platform", platform)

	output := b.platformOutput(platform)
	work := filepath.Join(output, "stages")
	if err := os.MkdirAll(work, paths.DefaultDirMode); err != nil {
		return errFS(err)
	}

	nodes := make(map[string]*stageNode, len(b.g.Stages))
	for _, s := range b.g.Stages {
		nodes[s.Name] = &stageNode{stage: s, done: make(chan struct{})}
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, s := range b.g.Stages {
		node := nodes[s.Name]
		eg.Go(func() error {
			err := b.buildStage(ctx, node, nodes, platform, work, output)
			node.err = err
			close(node.done)
			return err
		})
	}

	return eg.Wait()
}

// Realizes a single stage for a specific platform.
//
// Waits for the stage's dependencies, consults the cache, and otherwise
// starts a session from the base archive, replays the actions, and exports
// the result. The cache is keyed by the stage's full content identity, so
// a hit is always an exact replay equivalent.
func (b *builder) buildStage(ctx context.Context, node *stageNode, nodes map[string]*stageNode, platform, work, output string) error {
	s := node.stage

	for _, dep := range s.Deps {
		if _, err := awaitStage(ctx, nodes[dep]); err != nil {
			return err
		}
	}

	base, identity, err := b.resolveBase(s, nodes)
	if err != nil {
		return err
	}

	key, err := cache.Key(identity, s.Args, s.Actions)
	if err != nil {
		return err
	}
	node.key = key

	if b.cache != nil {
		if path, ok := b.cache.Get(key); ok {
			slog.Info(fmt.Sprintf("stage %q cached", s.Name), "platform", platform, "key", key.String())
			node.archive = path
			return b.publishTarget(node, output)
		}
	}

	slog.Info(fmt.Sprintf("building stage %q", s.Name), "platform", platform)

	sess, err := b.startSession(ctx, base, b.containerID(s.Name, platform), platform)
	if err != nil {
		return err
	}
	node.sessOnce.Do(func() { node.sess = sess })

	if err := executeActions(ctx, sess, s, b.root, b.sourceLookup(nodes, platform)); err != nil {
		return err
	}

	archive := filepath.Join(work, s.Name+".tar")
	if err := sess.Export(ctx, archive, exportMeta(s.Meta)); err != nil {
		return err
	}

	node.archive = archive
	if b.cache != nil {
		if stored, err := b.cache.Put(key, archive); err == nil {
			node.archive = stored
		} else {
			slog.Warn("failed to cache stage", "stage", s.Name, "error", err)
		}
	}

	return b.publishTarget(node, output)
}

// Copies the target stage's archive to the output directory.
//
// Transient targets are realized but not exported.
func (b *builder) publishTarget(node *stageNode, output string) error {
	if node.stage != b.g.Target || node.stage.Transient {
		return nil
	}

	dest := filepath.Join(output, exportFilename)
	if err := copyFile(node.archive, dest); err != nil {
		return errFS(err)
	}

	slog.Info("image exported", "path", dest)
	return nil
}

// Resolves a stage's base to an archive path and a content identity.
//
// External image bases are identified by their reference; stage bases are
// identified by the parent's cache key, so cache identity covers the whole
// ancestor chain.
func (b *builder) resolveBase(s *graph.Stage, nodes map[string]*stageNode) (archive, identity string, err error) {
	if s.Base.Kind == manifest.BaseStage {
		parent := nodes[s.Base.Value]
		// Already awaited in buildStage; done is closed here.
		if parent.err != nil {
			return "", "", parent.err
		}
		return parent.archive, parent.key.String(), nil
	}

	archive = s.Base.Value
	if !filepath.IsAbs(archive) {
		archive = filepath.Join(b.root, archive)
	}
	return archive, "image:" + s.Base.Value, nil
}

// Blocks until a stage node is realized.
func awaitStage(ctx context.Context, node *stageNode) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-node.done:
	}

	if node.err != nil {
		return "", fmt.Errorf("dependency %q failed: %w", node.stage.Name, node.err)
	}
	return node.archive, nil
}

// Returns a lookup that resolves a named stage to a session for
// cross-stage copies.
//
// A stage realized in this build reuses its own session. A cache-hit stage
// has none; one is opened lazily from its cached archive, at most once even
// when independent stages copy from it concurrently.
func (b *builder) sourceLookup(nodes map[string]*stageNode, platform string) sessionLookup {
	return func(ctx context.Context, name string) (Session, error) {
		node, ok := nodes[name]
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", name)
		}

		archive, err := awaitStage(ctx, node)
		if err != nil {
			return nil, err
		}

		node.sessOnce.Do(func() {
			id := b.containerID(name, platform) + "-src"
			node.sess, node.sessErr = b.startSession(ctx, archive, id, platform)
		})
		return node.sess, node.sessErr
	}
}

// Starts a stage session and registers it for destruction.
func (b *builder) startSession(ctx context.Context, base, id, platform string) (Session, error) {
	sess, err := b.exec.StartStage(ctx, base, id, platform)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.sessions = append(b.sessions, sess)
	b.mu.Unlock()

	return sess, nil
}

// Destroys all stage sessions.
func (b *builder) destroySessions(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sess := range b.sessions {
		sess.Destroy(ctx)
	}
}

// Returns a unique container ID for a stage, scoped to this resource and
// platform.
func (b *builder) containerID(name, platform string) string {
	return fmt.Sprintf("%s-%s-stage-%s", b.resource, platformSlug(platform), name)
}

// Returns the output directory for a specific platform.
//
// When building for a single platform, the output directory is left as-is
// to preserve the {output}/image.tar convention. For multi-platform builds,
// each platform gets a subdirectory (e.g., {output}/linux-amd64).
func (b *builder) platformOutput(platform string) string {
	if len(b.platforms) == 1 {
		return b.output
	}
	return filepath.Join(b.output, platformSlug(platform))
}

// Converts a platform string to a filesystem-safe slug.
//
// Replaces slashes with dashes (e.g., "linux/amd64" becomes "linux-amd64").
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}

// Builds the image config values for an exported stage.
func exportMeta(meta graph.Metadata) ExportMeta {
	return ExportMeta{User: meta.User, Env: meta.Environ()}
}

// Copies a file, creating or truncating the destination.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, paths.DefaultFileMode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Wraps a filesystem error with the package sentinel.
func errFS(err error) error {
	return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
}
