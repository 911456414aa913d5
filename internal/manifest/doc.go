// Package manifest defines the recipe data model.
//
// A recipe is an ordered list of stages. Each stage names a base (an
// external image archive or an earlier stage), declares build arguments,
// and lists provisioning actions that are executed in declaration order:
// package installs, account creation, environment changes, and filesystem
// mutations. Recipes are decoded from YAML; the same types carry JSON tags
// so they can travel over the daemon protocol unchanged.
//
// The package performs structural validation only (exactly one operation
// per action, well-formed field values). Graph-level validation such as
// base resolution and cycle detection lives in the graph package.
package manifest
