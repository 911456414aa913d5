package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stagehandhq/stagehandd/internal/build"
	"github.com/stagehandhq/stagehandd/internal/cache"
	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/manifest"
	"github.com/stagehandhq/stagehandd/internal/paths"
	"github.com/stagehandhq/stagehandd/internal/runtime"
	"github.com/stagehandhq/stagehandd/internal/server"
)

// Represents the 'stagehandd build' command.
//
// Builds a recipe directly against containerd, without a running daemon.
type BuildCmd struct {
	Recipe   string   `arg:"" type:"existingfile" help:"Recipe file to build."`
	Target   string   `short:"t" help:"Target stage. Defaults to the last declared stage."`
	Arg      []string `short:"a" help:"Build argument override (NAME=VALUE). Repeatable." placeholder:"NAME=VALUE"`
	Output   string   `short:"o" help:"Output directory for the exported image." placeholder:"DIR"`
	Root     string   `help:"Build root for copy sources and relative base archives. Defaults to the recipe's directory." placeholder:"DIR"`
	Platform []string `help:"Target platform (e.g. linux/amd64). Repeatable." placeholder:"OS/ARCH"`
	Resource string   `help:"Resource name, prefixes container IDs." default:"local"`
	NoCache  bool     `help:"Disable the stage cache."`

	ContainerdAddress   string `help:"Containerd socket address." placeholder:"PATH"`
	ContainerdNamespace string `help:"Containerd namespace." placeholder:"NAME"`
}

// Executes the build command.
//
// Resolves the stage graph, realizes it, and prints the realized metadata
// of the target stage as JSON.
func (c *BuildCmd) Run(ctx context.Context) error {
	recipe, err := manifest.Load(c.Recipe)
	if err != nil {
		return err
	}

	overrides, err := parseArgs(c.Arg)
	if err != nil {
		return err
	}

	g, err := graph.Resolve(recipe, c.Target, overrides)
	if err != nil {
		return err
	}

	address := c.ContainerdAddress
	if address == "" {
		address = server.DefaultContainerdAddress
	}
	namespace := c.ContainerdNamespace
	if namespace == "" {
		namespace = server.DefaultContainerdNamespace
	}

	rt, err := runtime.New(address, namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	output := c.Output
	if output == "" {
		output = paths.Output()
	}

	root := c.Root
	if root == "" {
		root = filepath.Dir(c.Recipe)
	}

	var stageCache *cache.Cache
	if !c.NoCache {
		if stageCache, err = cache.Open(paths.StageCache()); err != nil {
			return err
		}
	}

	result, err := build.Run(ctx, build.Options{
		Graph:     g,
		Executor:  rt,
		Resource:  c.Resource,
		Output:    output,
		Root:      root,
		Platforms: c.Platform,
		Cache:     stageCache,
	})
	if err != nil {
		return err
	}

	return printJSON(os.Stdout, result.Metadata)
}

// Parses NAME=VALUE argument overrides.
func parseArgs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	args := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid argument %q, expected NAME=VALUE", pair)
		}
		args[name] = value
	}
	return args, nil
}

// Writes a value as indented JSON.
func printJSON(w *os.File, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
