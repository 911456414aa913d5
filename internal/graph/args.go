package graph

import (
	"errors"
	"maps"
	"regexp"
	"slices"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// Matches ${NAME} argument references inside action strings.
var argRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Build arguments visible to a stage.
//
// A stage sees its own declarations plus everything declared along its
// ancestor chain. Caller overrides take precedence over declared defaults;
// an argument that is declared but has neither is tracked so a reference to
// it can be reported precisely.
type argScope struct {
	values   map[string]string // Bound build arguments.
	declared map[string]bool   // All declared build argument names.
}

func newArgScope() *argScope {
	return &argScope{
		values:   make(map[string]string),
		declared: make(map[string]bool),
	}
}

// Returns an independent child scope seeded with the parent's bindings.
func (sc *argScope) child() *argScope {
	return &argScope{
		values:   maps.Clone(sc.values),
		declared: maps.Clone(sc.declared),
	}
}

// Declares a stage's build arguments, resolving each against caller
// overrides first and declared defaults second.
func (sc *argScope) declare(args []manifest.Argument, overrides map[string]string) {
	for _, arg := range args {
		if arg.EffectiveScope() != manifest.ScopeBuild {
			continue
		}
		sc.declared[arg.Name] = true
		if v, ok := overrides[arg.Name]; ok {
			sc.values[arg.Name] = v
		} else if arg.Default != nil {
			sc.values[arg.Name] = *arg.Default
		}
	}
}

// Expands ${NAME} references in s against the scope.
//
// A reference to an argument that is undeclared, or declared without an
// override or default, fails with [ErrMissingArgument] naming the argument.
func (sc *argScope) expand(stage, s string) (string, error) {
	var missing string

	expanded := argRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if v, ok := sc.values[name]; ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return ref
	})

	if missing != "" {
		cause := errors.New("not declared in this stage or its ancestors")
		if sc.declared[missing] {
			cause = errors.New("declared without an override or default")
		}
		return "", &Error{Kind: ErrMissingArgument, Stage: stage, Argument: missing, Err: cause}
	}
	return expanded, nil
}

// Returns a copy of the stage's actions with all argument references
// expanded.
func (sc *argScope) expandActions(stage string, actions []manifest.Action) ([]manifest.Action, error) {
	out := make([]manifest.Action, len(actions))

	for i, action := range actions {
		expanded, err := sc.expandAction(stage, action)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}

	return out, nil
}

// Expands a single action's string fields.
func (sc *argScope) expandAction(stage string, action manifest.Action) (manifest.Action, error) {
	var err error

	expand := func(s string) string {
		if err != nil || s == "" {
			return s
		}
		var out string
		out, err = sc.expand(stage, s)
		if err != nil {
			return s
		}
		return out
	}

	out := action

	if len(action.Install) > 0 {
		out.Install = slices.Clone(action.Install)
		for i, pkg := range out.Install {
			out.Install[i] = expand(pkg)
		}
	}
	if action.Account != nil {
		acct := *action.Account
		acct.Username = expand(acct.Username)
		acct.Shell = expand(acct.Shell)
		out.Account = &acct
	}
	if action.Env != nil {
		env := *action.Env
		env.Value = expand(env.Value)
		out.Env = &env
	}
	out.Copy = expand(action.Copy)
	out.Chmod = expand(action.Chmod)
	out.Mkdir = expand(action.Mkdir)

	if err != nil {
		return manifest.Action{}, err
	}
	return out, nil
}
