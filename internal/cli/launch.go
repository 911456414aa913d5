package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/launch"
	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// Represents the 'stagehandd launch' command.
//
// Computes an effective launch configuration from realized image metadata
// and a runtime descriptor, and prints it as JSON. No container is started.
type LaunchCmd struct {
	Metadata   string   `short:"m" type:"existingfile" help:"Realized metadata JSON file, as printed by build." placeholder:"FILE" xor:"source" required:""`
	Recipe     string   `short:"r" type:"existingfile" help:"Recipe file; metadata is taken from resolving its target stage." placeholder:"FILE" xor:"source"`
	Target     string   `short:"t" help:"Target stage when resolving from a recipe."`
	Arg        []string `short:"a" help:"Build argument override (NAME=VALUE). Repeatable." placeholder:"NAME=VALUE"`
	Descriptor string   `short:"c" type:"existingfile" help:"Runtime descriptor JSON file." placeholder:"FILE"`
}

// Executes the launch command.
func (c *LaunchCmd) Run(ctx context.Context) error {
	meta, err := c.metadata()
	if err != nil {
		return err
	}

	var desc *launch.Descriptor
	if c.Descriptor != "" {
		if desc, err = launch.LoadDescriptor(c.Descriptor); err != nil {
			return err
		}
	}

	cfg, err := launch.Merge(meta, desc)
	if err != nil {
		return err
	}

	return printJSON(os.Stdout, cfg)
}

// Produces the realized metadata, either from a metadata file or by
// resolving a recipe's target stage.
func (c *LaunchCmd) metadata() (graph.Metadata, error) {
	if c.Metadata != "" {
		data, err := os.ReadFile(c.Metadata)
		if err != nil {
			return graph.Metadata{}, err
		}
		var meta graph.Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return graph.Metadata{}, fmt.Errorf("decode metadata %s: %w", c.Metadata, err)
		}
		return meta, nil
	}

	recipe, err := manifest.Load(c.Recipe)
	if err != nil {
		return graph.Metadata{}, err
	}

	overrides, err := parseArgs(c.Arg)
	if err != nil {
		return graph.Metadata{}, err
	}

	g, err := graph.Resolve(recipe, c.Target, overrides)
	if err != nil {
		return graph.Metadata{}, err
	}

	return g.Metadata(), nil
}
