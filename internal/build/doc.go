// Package build realizes resolved stage graphs against a container runtime.
//
// Each stage starts a container from its base (an external image archive
// or an earlier stage's exported artifact), replays its provisioning
// actions in declaration order, and exports the result as an OCI archive
// with the stage's declared user and environment written into the image
// config. Stages with no ancestor relationship are realized in parallel;
// a stage's artifact is published atomically, so a dependent never
// observes a partially realized base.
//
// Provisioning state (environment variables visible to later actions) is
// carried through an immutable snapshot chain: every action consumes the
// previous snapshot and produces a new one, which keeps parallel
// realization of independent stages safe by construction.
//
// Builds are full replays from the declared base. The content-addressed
// stage cache short-circuits a replay only on an exact identity match;
// there is no incremental patching of an already-provisioned filesystem.
//
// Example usage:
//
//	result, err := build.Run(ctx, build.Options{
//	    Graph:    g,
//	    Executor: exec,
//	    Resource: "workbench",
//	    Output:   "dist",
//	    Root:     ".",
//	})
//	if err != nil {
//	    return err
//	}
package build
