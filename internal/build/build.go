package build

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"

	"github.com/stagehandhq/stagehandd/internal/cache"
	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/paths"
)

// Controls graph realization.
type Options struct {
	Graph     *graph.Graph // Resolved graph to realize.
	Executor  Executor     // Container runtime executor for stage sessions.
	Resource  string       // Resource name, used as a prefix for container IDs.
	Output    string       // Directory for the exported target image.
	Root      string       // Build root, for resolving copy sources and base archives.
	Platforms []string     // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
	Cache     *cache.Cache // Optional content-addressed stage cache.
}

// Returned after successful realization.
type Result struct {
	Output   string         // Directory containing the exported image.
	Metadata graph.Metadata // Realized metadata of the target stage.
}

// Realizes a resolved graph against the container runtime.
//
// Stages are realized in dependency order, independent stages in parallel.
// The target stage is exported as the final image to the output directory
// unless it is transient. Any action failure aborts the whole build; no
// partial artifact is returned.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{"linux/" + goruntime.GOARCH}
	}

	slog.Info("realizing graph",
		"resource", opts.Resource,
		"target", opts.Graph.Target.Name,
		"output", opts.Output,
		"stages", len(opts.Graph.Stages),
		"platforms", opts.Platforms,
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, errFS(err)
	}

	return newBuilder(opts).build(ctx)
}
