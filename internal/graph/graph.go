package graph

import (
	"fmt"
	"maps"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// A resolved, validated stage graph.
//
// Stages holds the target's dependency closure in realization order:
// declaration order restricted to reachable stages, which is a valid
// topological order because every dependency is declared earlier. Stages
// with no ancestor relationship may be realized in parallel; the build
// package enforces the ordering discipline.
type Graph struct {
	Stages []*Stage // Realization order.
	Target *Stage   // The stage whose artifact the caller asked for.
}

// One resolved stage.
//
// Immutable after resolution. Actions have all build argument references
// expanded; Meta carries the cumulative declared metadata of the ancestor
// chain including this stage's own declarations.
type Stage struct {
	Name      string            // Unique stage identifier.
	Base      manifest.BaseRef  // External image or named earlier stage.
	Transient bool              // Transient stages are not exported.
	Deps      []string          // Names of stages this stage depends on.
	Args      map[string]string // Resolved build arguments visible to this stage.
	Actions   []manifest.Action // Argument-expanded provisioning actions.
	Meta      Metadata          // Cumulative declared metadata.
}

// Returns the realized metadata of the target stage.
func (g *Graph) Metadata() Metadata {
	return g.Target.Meta
}

// Resolves a recipe into a validated graph for the given target stage.
//
// Validation order: structural recipe checks, unknown base references
// ([ErrUndeclaredBase]), cycles ([ErrCycle]), forward references
// ([ErrUndeclaredBase]). Build arguments resolve override-first, then
// declared default; a reference with neither fails with
// [ErrMissingArgument]. An empty target selects the last declared stage.
func Resolve(recipe *manifest.Recipe, target string, overrides map[string]string) (*Graph, error) {
	if err := recipe.Validate(); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(recipe.Stages))
	for i, stage := range recipe.Stages {
		index[stage.Name] = i
	}

	deps, err := stageDeps(recipe, index)
	if err != nil {
		return nil, err
	}

	if err := checkAcyclic(recipe, deps); err != nil {
		return nil, err
	}

	// Cycles are ruled out, so any remaining out-of-order reference is a
	// plain forward declaration.
	for i, stage := range recipe.Stages {
		for _, dep := range deps[stage.Name] {
			if index[dep] >= i {
				return nil, &Error{
					Kind:  ErrUndeclaredBase,
					Stage: stage.Name,
					Err:   fmt.Errorf("stage %q is declared later", dep),
				}
			}
		}
	}

	if target == "" {
		target = recipe.Stages[len(recipe.Stages)-1].Name
	}
	if _, ok := index[target]; !ok {
		return nil, fmt.Errorf("unknown target stage %q", target)
	}

	reachable := closure(target, deps)

	return resolveStages(recipe, target, overrides, deps, reachable)
}

// Computes each stage's dependencies: its base stage plus any cross-stage
// copy sources. Unknown names fail with [ErrUndeclaredBase].
func stageDeps(recipe *manifest.Recipe, index map[string]int) (map[string][]string, error) {
	deps := make(map[string][]string, len(recipe.Stages))

	for _, stage := range recipe.Stages {
		var list []string
		seen := make(map[string]bool)

		add := func(name string) error {
			if _, ok := index[name]; !ok {
				return &Error{
					Kind:  ErrUndeclaredBase,
					Stage: stage.Name,
					Err:   fmt.Errorf("references unknown stage %q", name),
				}
			}
			if !seen[name] {
				seen[name] = true
				list = append(list, name)
			}
			return nil
		}

		base, err := stage.ParseFrom()
		if err != nil {
			return nil, err
		}
		if base.Kind == manifest.BaseStage {
			if err := add(base.Value); err != nil {
				return nil, err
			}
		}

		for _, action := range stage.Actions {
			if action.Copy == "" {
				continue
			}
			src, _, err := manifest.ParseCopy(action.Copy)
			if err != nil {
				return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
			}
			if name, _, ok := manifest.StageSource(src); ok {
				if err := add(name); err != nil {
					return nil, err
				}
			}
		}

		deps[stage.Name] = list
	}

	return deps, nil
}

// Rejects graphs with dependency cycles.
//
// Depth-first walk with tricolor marking; revisiting an in-progress stage
// fails with [ErrCycle] naming it. Terminates on every input because each
// stage is visited at most once.
func checkAcyclic(recipe *manifest.Recipe, deps map[string][]string) error {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(recipe.Stages))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return &Error{Kind: ErrCycle, Stage: name}
		case done:
			return nil
		}

		state[name] = visiting
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, stage := range recipe.Stages {
		if err := visit(stage.Name); err != nil {
			return err
		}
	}
	return nil
}

// Returns the set of stages reachable from target through deps.
func closure(target string, deps map[string][]string) map[string]bool {
	reachable := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if reachable[name] {
			return
		}
		reachable[name] = true
		for _, dep := range deps[name] {
			visit(dep)
		}
	}

	visit(target)
	return reachable
}

// Resolves arguments and metadata for every reachable stage in declaration
// order and assembles the final graph.
func resolveStages(recipe *manifest.Recipe, target string, overrides map[string]string, deps map[string][]string, reachable map[string]bool) (*Graph, error) {
	g := &Graph{}

	scopes := make(map[string]*argScope, len(reachable))
	resolved := make(map[string]*Stage, len(reachable))

	for _, stage := range recipe.Stages {
		if !reachable[stage.Name] {
			continue
		}

		base, err := stage.ParseFrom()
		if err != nil {
			return nil, err
		}

		scope := newArgScope()
		meta := Metadata{}
		if base.Kind == manifest.BaseStage {
			scope = scopes[base.Value].child()
			meta = resolved[base.Value].Meta.clone()
		}

		scope.declare(stage.Args, overrides)

		actions, err := scope.expandActions(stage.Name, stage.Actions)
		if err != nil {
			return nil, err
		}

		for _, action := range actions {
			meta.apply(action)
		}

		for _, arg := range stage.Args {
			if arg.EffectiveScope() != manifest.ScopeRuntime {
				continue
			}
			if v, ok := overrides[arg.Name]; ok {
				meta.bindRuntimeArg(arg.Name, &v)
			} else {
				meta.bindRuntimeArg(arg.Name, arg.Default)
			}
		}

		if len(stage.Preferences) > 0 {
			meta.Preferences = MergeTrees(meta.Preferences, stage.Preferences)
		}

		s := &Stage{
			Name:      stage.Name,
			Base:      base,
			Transient: stage.Transient,
			Deps:      deps[stage.Name],
			Args:      maps.Clone(scope.values),
			Actions:   actions,
			Meta:      meta,
		}

		scopes[stage.Name] = scope
		resolved[stage.Name] = s
		g.Stages = append(g.Stages, s)
	}

	g.Target = resolved[target]
	return g, nil
}
