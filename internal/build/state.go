package build

import (
	"maps"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// Provisioning state visible to an action.
//
// The state flows through a stage's action list as an immutable snapshot
// chain: with returns a new snapshot and never mutates the receiver, so
// each action observes exactly the cumulative effects of its predecessors
// and independent stages can realize in parallel without sharing state.
type provisionState struct {
	env map[string]string
}

// Creates the initial snapshot for a stage.
func newProvisionState() *provisionState {
	return &provisionState{env: make(map[string]string)}
}

// Returns a new snapshot with the action's environment effects applied.
//
// Only environment actions change the snapshot; all other actions take
// effect in the container filesystem instead. Appends concatenate with a
// colon, matching the search-path convention.
func (s *provisionState) with(action manifest.Action) *provisionState {
	if action.Env == nil {
		return s
	}

	next := &provisionState{env: maps.Clone(s.env)}

	name, value := action.Env.Name, action.Env.Value
	if action.Env.Append {
		if existing := next.env[name]; existing != "" {
			value = existing + ":" + value
		}
	}
	next.env[name] = value

	return next
}

// Formats the snapshot's environment as a list of "key=value" strings
// suitable for passing to container exec.
func (s *provisionState) environ() []string {
	env := make([]string, 0, len(s.env))
	for k, v := range s.env {
		env = append(env, k+"="+v)
	}
	return env
}
