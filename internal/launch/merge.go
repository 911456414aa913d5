package launch

import (
	"slices"
	"strings"

	"github.com/stagehandhq/stagehandd/internal/graph"
)

// How a setting present in both the image metadata and the descriptor is
// combined.
type mergePolicy int

const (
	// Descriptor value replaces the image value.
	policyOverride mergePolicy = iota

	// Values are concatenated, image value first. Used for search-path
	// environment variables: the descriptor extends the path, it does not
	// replace it.
	policyConcat

	// Nested trees are merged key by key; descriptor leaves win.
	policyDeepMerge
)

// Returns the merge policy for an environment variable.
func envPolicy(name string) mergePolicy {
	if graph.IsSearchPath(name) {
		return policyConcat
	}
	return policyOverride
}

// Merges realized image metadata with a runtime descriptor into an
// effective configuration.
//
// Precedence: descriptor values win over image values, except search-path
// environment variables, which concatenate image-first. The launch user
// falls back from descriptor to image default and fails with [ErrNoUser]
// when neither names one. The merge is all-or-nothing; on error no partial
// configuration is returned.
func Merge(meta graph.Metadata, desc *Descriptor) (*Configuration, error) {
	if desc == nil {
		desc = &Descriptor{}
	}

	user := desc.User
	if user == "" {
		user = meta.User
	}
	if user == "" {
		return nil, &Error{Kind: ErrNoUser}
	}

	return &Configuration{
		User:        user,
		Env:         mergeEnv(meta, desc),
		Privileged:  desc.Privileged,
		CapAdd:      slices.Clone(desc.CapAdd),
		SecurityOpt: slices.Clone(desc.SecurityOpt),
		Devices:     slices.Clone(desc.Devices),
		Mounts:      slices.Clone(desc.Mounts),
		RunArgs:     slices.Clone(desc.RunArgs),
		Preferences: graph.MergeTrees(meta.Preferences, desc.Preferences),
	}, nil
}

// Computes the effective environment.
//
// Layering, lowest precedence first: image-declared variables, bound
// runtime arguments (defaults only, they never overwrite a declared
// variable), search-path additions appended to the image base value, then
// descriptor bindings applied per variable policy.
func mergeEnv(meta graph.Metadata, desc *Descriptor) map[string]string {
	env := make(map[string]string, len(meta.Env)+len(meta.RuntimeArgs)+len(desc.Env))

	for k, v := range meta.Env {
		env[k] = v
	}

	for k, v := range meta.RuntimeArgs {
		if _, ok := env[k]; !ok {
			env[k] = v
		}
	}

	for name, additions := range meta.PathAdditions {
		env[name] = graph.AppendPath(env[name], additions)
	}

	for k, v := range desc.Env {
		switch envPolicy(k) {
		case policyConcat:
			env[k] = graph.AppendPath(env[k], strings.Split(v, ":"))
		default:
			env[k] = v
		}
	}

	return env
}
