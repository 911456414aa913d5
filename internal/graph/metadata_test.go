package graph

import (
	"reflect"
	"testing"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

func TestMetadataDefaultUser(t *testing.T) {
	var m Metadata
	m.apply(manifest.Action{Account: &manifest.Account{Username: "developer", Default: true}})
	if m.User != "developer" {
		t.Fatalf("user = %q, want developer", m.User)
	}

	// A later non-default account does not steal the designation.
	m.apply(manifest.Action{Account: &manifest.Account{Username: "ci"}})
	if m.User != "developer" {
		t.Fatalf("user = %q after non-default account, want developer", m.User)
	}
}

func TestMetadataPathAdditions(t *testing.T) {
	var m Metadata

	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "PATH", Value: "/home/x/.local/bin", Append: true}})
	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "PATH", Value: "/opt/tools/bin", Append: true}})

	want := []string{"/home/x/.local/bin", "/opt/tools/bin"}
	if !reflect.DeepEqual(m.PathAdditions["PATH"], want) {
		t.Fatalf("PathAdditions[PATH] = %v, want %v", m.PathAdditions["PATH"], want)
	}
}

func TestMetadataPathAdditionDeduplicated(t *testing.T) {
	var m Metadata

	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "PATH", Value: "/home/x/.local/bin", Append: true}})
	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "PATH", Value: "/home/x/.local/bin", Append: true}})

	if got := len(m.PathAdditions["PATH"]); got != 1 {
		t.Fatalf("len(PathAdditions[PATH]) = %d, want 1", got)
	}
}

func TestMetadataPlainEnv(t *testing.T) {
	var m Metadata

	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "ROS_DISTRO", Value: "humble"}})
	if m.Env["ROS_DISTRO"] != "humble" {
		t.Fatalf("env = %v, want ROS_DISTRO=humble", m.Env)
	}

	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "ROS_DISTRO", Value: "jazzy"}})
	if m.Env["ROS_DISTRO"] != "jazzy" {
		t.Fatalf("env set did not overwrite: %v", m.Env)
	}

	// Append on a non-search-path variable concatenates with a colon.
	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "FLAGS", Value: "a"}})
	m.apply(manifest.Action{Env: &manifest.EnvVar{Name: "FLAGS", Value: "b", Append: true}})
	if m.Env["FLAGS"] != "a:b" {
		t.Fatalf("env[FLAGS] = %q, want a:b", m.Env["FLAGS"])
	}
}

func TestMetadataInheritanceAncestorFirst(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{
			Name: "base",
			From: "image:ubuntu.tar",
			Actions: []manifest.Action{
				{Env: &manifest.EnvVar{Name: "PATH", Value: "/opt/base/bin", Append: true}},
			},
		},
		{
			Name: "tools",
			From: "stage:base",
			Actions: []manifest.Action{
				{Env: &manifest.EnvVar{Name: "PATH", Value: "/opt/tools/bin", Append: true}},
			},
		},
	}}

	g, err := Resolve(recipe, "tools", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := []string{"/opt/base/bin", "/opt/tools/bin"}
	if got := g.Metadata().PathAdditions["PATH"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("PathAdditions[PATH] = %v, want %v (ancestor first)", got, want)
	}
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{
			Name: "base",
			From: "image:ubuntu.tar",
			Actions: []manifest.Action{
				{Env: &manifest.EnvVar{Name: "PATH", Value: "/opt/base/bin", Append: true}},
			},
		},
		{
			Name: "tools",
			From: "stage:base",
			Actions: []manifest.Action{
				{Env: &manifest.EnvVar{Name: "PATH", Value: "/opt/tools/bin", Append: true}},
			},
		},
	}}

	g, err := Resolve(recipe, "tools", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var base *Stage
	for _, s := range g.Stages {
		if s.Name == "base" {
			base = s
		}
	}

	if got := len(base.Meta.PathAdditions["PATH"]); got != 1 {
		t.Fatalf("base stage metadata leaked descendant additions: %v", base.Meta.PathAdditions["PATH"])
	}
}

func TestMergeTreesDeep(t *testing.T) {
	image := map[string]any{
		"editor": map[string]any{
			"formatOnSave": true,
			"rulers":       []any{80, 120},
		},
		"terminal": map[string]any{"shell": "/bin/bash"},
	}
	descriptor := map[string]any{
		"editor": map[string]any{
			"formatOnSave": false,
		},
	}

	merged := MergeTrees(image, descriptor)

	editor := merged["editor"].(map[string]any)
	if editor["formatOnSave"] != false {
		t.Fatal("descriptor leaf did not override image leaf")
	}
	if _, ok := editor["rulers"]; !ok {
		t.Fatal("non-conflicting image key lost in merge")
	}
	if _, ok := merged["terminal"]; !ok {
		t.Fatal("image-only subtree lost in merge")
	}
}

func TestMergeTreesIdempotent(t *testing.T) {
	image := map[string]any{
		"editor": map[string]any{"tabSize": 4, "theme": "dark"},
	}
	descriptor := map[string]any{
		"editor": map[string]any{"theme": "light"},
	}

	once := MergeTrees(image, descriptor)
	twice := MergeTrees(MergeTrees(image, descriptor), descriptor)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestMergeTreesDoesNotAliasInputs(t *testing.T) {
	image := map[string]any{"a": map[string]any{"x": 1}}
	merged := MergeTrees(image, nil)

	merged["a"].(map[string]any)["x"] = 2
	if image["a"].(map[string]any)["x"] != 1 {
		t.Fatal("merge result aliases input map")
	}
}
