// Package launch merges realized image metadata with runtime descriptors.
//
// A [Descriptor] carries externally supplied launch settings: the process
// user, environment bindings, launch flags (capabilities, security options,
// device and volume passthrough), and an opaque editor/tooling preference
// tree. [Merge] combines it with the metadata of a realized graph's final
// stage into an effective [Configuration] under a small per-setting policy
// table: descriptor values override image values, search-path environment
// variables concatenate image-first, and preference trees deep-merge with
// descriptor leaves winning.
//
// The merge is a pure computation with no shared mutable state; it may be
// invoked concurrently for independent launch requests.
//
// Example usage:
//
//	desc, err := launch.LoadDescriptor("workbench.json")
//	if err != nil {
//	    return err
//	}
//
//	cfg, err := launch.Merge(g.Metadata(), desc)
//	if err != nil {
//	    return err
//	}
//
//	process := cfg.Process()
package launch
