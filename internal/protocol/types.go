package protocol

import (
	"encoding/json"
	"errors"

	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/launch"
)

// Error subtypes reported in [ErrorResult].
const (
	// Stage graph resolution or realization failure.
	KindGraph = "graph"

	// Runtime configuration merge failure.
	KindConfig = "config"
)

// Asks the daemon to build a recipe.
type BuildRequest struct {
	Recipe    string            `json:"recipe"`              // Recipe YAML text.
	Resource  string            `json:"resource"`            // Resource name, prefixes container IDs.
	Target    string            `json:"target,omitempty"`    // Target stage. Empty selects the last declared stage.
	Args      map[string]string `json:"args,omitempty"`      // Build argument overrides.
	Output    string            `json:"output,omitempty"`    // Output directory. Empty uses the daemon default.
	Root      string            `json:"root,omitempty"`      // Build root for copy sources and relative base archives.
	Platforms []string          `json:"platforms,omitempty"` // Target platforms. Empty uses the host platform.
}

// Reports a completed build.
type BuildResult struct {
	Output   string         `json:"output"`   // Directory containing the exported image.
	Metadata graph.Metadata `json:"metadata"` // Realized metadata of the target stage.
}

// Asks the daemon to compute an effective launch configuration.
type LaunchRequest struct {
	Metadata   graph.Metadata  `json:"metadata"`             // Realized image metadata.
	Descriptor json.RawMessage `json:"descriptor,omitempty"` // Runtime descriptor JSON.
}

// Carries the computed effective configuration.
type LaunchResult struct {
	Configuration *launch.Configuration `json:"configuration"`
}

// Reports daemon status.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Builds  int    `json:"builds"`
}

// Carries a failure back to the client.
//
// Kind distinguishes graph failures from configuration failures; the
// location fields pinpoint the offending stage, action, argument, or
// descriptor setting when known.
type ErrorResult struct {
	Message  string `json:"message"`
	Kind     string `json:"kind,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Action   int    `json:"action,omitempty"`
	Argument string `json:"argument,omitempty"`
	Setting  string `json:"setting,omitempty"`
}

// Builds an [ErrorResult] from an error, classifying graph and
// configuration failures and extracting their location.
func ErrorFrom(err error) *ErrorResult {
	res := &ErrorResult{Message: err.Error()}

	var gerr *graph.Error
	if errors.As(err, &gerr) {
		res.Kind = KindGraph
		res.Stage = gerr.Stage
		res.Action = gerr.Action
		res.Argument = gerr.Argument
		return res
	}

	var lerr *launch.Error
	if errors.As(err, &lerr) {
		res.Kind = KindConfig
		res.Setting = lerr.Setting
		return res
	}

	return res
}
