package graph

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// Environment variables treated as search paths.
//
// Appends to these variables are recorded as path-prefix additions in the
// stage metadata instead of plain environment values, so the launch surface
// can extend them rather than replace them.
var searchPathVars = map[string]bool{
	"PATH":            true,
	"PYTHONPATH":      true,
	"LD_LIBRARY_PATH": true,
}

// Reports whether a variable is merged by concatenation at launch.
func IsSearchPath(name string) bool {
	return searchPathVars[name]
}

// Declared metadata of a realized stage.
//
// Accumulated along the ancestor chain: a stage inherits its base stage's
// metadata and overlays its own declarations. Serialized as JSON so it can
// travel over the daemon protocol and into launch requests.
type Metadata struct {
	// Default launch user designated by an account action, if any.
	User string `json:"user,omitempty"`

	// Environment variables set during provisioning.
	Env map[string]string `json:"env,omitempty"`

	// Ordered additions to search-path variables, keyed by variable name.
	// Ancestor additions precede descendant additions.
	PathAdditions map[string][]string `json:"pathAdditions,omitempty"`

	// Runtime-scoped arguments with a bound value (override or default).
	RuntimeArgs map[string]string `json:"runtimeArgs,omitempty"`

	// Runtime-scoped arguments propagated without a value.
	UnboundArgs []string `json:"unboundArgs,omitempty"`

	// Opaque editor/tooling preference tree, deep-merged along the chain.
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Returns a deep, independent copy of the metadata.
func (m Metadata) clone() Metadata {
	c := Metadata{User: m.User}
	if m.Env != nil {
		c.Env = maps.Clone(m.Env)
	}
	if m.PathAdditions != nil {
		c.PathAdditions = make(map[string][]string, len(m.PathAdditions))
		for k, v := range m.PathAdditions {
			c.PathAdditions[k] = slices.Clone(v)
		}
	}
	if m.RuntimeArgs != nil {
		c.RuntimeArgs = maps.Clone(m.RuntimeArgs)
	}
	c.UnboundArgs = slices.Clone(m.UnboundArgs)
	if m.Preferences != nil {
		c.Preferences = MergeTrees(nil, m.Preferences)
	}
	return c
}

// Applies one expanded action's declared effects to the metadata.
func (m *Metadata) apply(action manifest.Action) {
	switch {
	case action.Account != nil:
		if action.Account.Default {
			m.User = action.Account.Username
		}

	case action.Env != nil:
		m.applyEnv(*action.Env)
	}
}

// Records an environment change.
//
// Appends to search-path variables become path-prefix additions,
// deduplicated on first occurrence. Other appends concatenate with a colon
// into the plain environment; plain sets overwrite.
func (m *Metadata) applyEnv(env manifest.EnvVar) {
	if env.Append && IsSearchPath(env.Name) {
		if m.PathAdditions == nil {
			m.PathAdditions = make(map[string][]string)
		}
		if !slices.Contains(m.PathAdditions[env.Name], env.Value) {
			m.PathAdditions[env.Name] = append(m.PathAdditions[env.Name], env.Value)
		}
		return
	}

	if m.Env == nil {
		m.Env = make(map[string]string)
	}
	if env.Append {
		if existing := m.Env[env.Name]; existing != "" {
			m.Env[env.Name] = existing + ":" + env.Value
			return
		}
	}
	m.Env[env.Name] = env.Value
}

// Records a runtime-scoped argument binding.
func (m *Metadata) bindRuntimeArg(name string, value *string) {
	if value == nil {
		if !slices.Contains(m.UnboundArgs, name) {
			m.UnboundArgs = append(m.UnboundArgs, name)
		}
		return
	}
	if m.RuntimeArgs == nil {
		m.RuntimeArgs = make(map[string]string)
	}
	m.RuntimeArgs[name] = *value
}

// Returns the declared environment with search-path additions applied,
// as sorted "key=value" entries suitable for an OCI image config.
func (m Metadata) Environ() []string {
	env := make(map[string]string, len(m.Env)+len(m.PathAdditions))
	maps.Copy(env, m.Env)
	for name, additions := range m.PathAdditions {
		env[name] = AppendPath(env[name], additions)
	}

	entries := make([]string, 0, len(env))
	for k, v := range env {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return entries
}

// Appends entries to a colon-separated path value, preserving order and
// keeping the first occurrence of each entry. The base value always comes
// first: additions extend a search path, they never replace it.
func AppendPath(base string, additions []string) string {
	var parts []string
	if base != "" {
		parts = strings.Split(base, ":")
	}

	for _, add := range additions {
		if add == "" {
			continue
		}
		if !slices.Contains(parts, add) {
			parts = append(parts, add)
		}
	}

	return strings.Join(parts, ":")
}

// Deep-merges src into dst and returns the result.
//
// Nested maps are merged key by key at every level; non-map values from src
// override dst at the leaf only. Neither input is modified; the result
// shares no mutable state with either, so merging is lossless and repeated
// merges of the same inputs are stable.
func MergeTrees(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = copyTreeValue(v)
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := out[k].(map[string]any); ok {
				out[k] = MergeTrees(dstMap, srcMap)
				continue
			}
		}
		out[k] = copyTreeValue(v)
	}
	return out
}

// Returns an independent copy of a preference tree value.
func copyTreeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return MergeTrees(nil, t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyTreeValue(e)
		}
		return out
	default:
		return v
	}
}
