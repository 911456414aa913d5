// Package graph resolves recipes into validated stage graphs.
//
// Resolution validates base references (every stage must extend an external
// image or an earlier stage, with no cycles), resolves build arguments with
// override-then-default precedence, expands argument references inside
// actions, and derives each stage's declared metadata: the default launch
// user, search-path additions, runtime-scoped arguments, and the opaque
// preference tree, accumulated along the ancestor chain.
//
// Resolution is pure: it reads the recipe and produces an immutable
// [Graph]. Realizing the graph's filesystem side effects is the build
// package's job; merging the metadata with a runtime descriptor is the
// launch package's.
//
// Example usage:
//
//	recipe, err := manifest.Load("stagehand.yaml")
//	if err != nil {
//	    return err
//	}
//
//	g, err := graph.Resolve(recipe, "workbench", map[string]string{
//	    "USERNAME": "alice",
//	})
//	if err != nil {
//	    return err
//	}
//
//	meta := g.Metadata()
package graph
