package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

func strptr(s string) *string { return &s }

// Minimal stage helper: external base, no actions.
func stage(name, from string) manifest.Stage {
	return manifest.Stage{Name: name, From: from}
}

func TestResolveOrderFollowsDependencies(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		stage("base", "image:ubuntu.tar"),
		stage("tools", "stage:base"),
		stage("workbench", "stage:tools"),
	}}

	g, err := Resolve(recipe, "workbench", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if g.Target.Name != "workbench" {
		t.Fatalf("target = %q, want workbench", g.Target.Name)
	}

	pos := make(map[string]int, len(g.Stages))
	for i, s := range g.Stages {
		pos[s.Name] = i
	}

	for _, s := range g.Stages {
		for _, dep := range s.Deps {
			if pos[dep] >= pos[s.Name] {
				t.Fatalf("stage %q realized before its dependency %q", s.Name, dep)
			}
		}
	}
}

func TestResolveDefaultsToLastStage(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		stage("base", "image:ubuntu.tar"),
		stage("tools", "stage:base"),
	}}

	g, err := Resolve(recipe, "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if g.Target.Name != "tools" {
		t.Fatalf("target = %q, want tools", g.Target.Name)
	}
}

func TestResolveClosureExcludesUnrelatedStages(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		stage("base", "image:ubuntu.tar"),
		stage("docs", "image:alpine.tar"),
		stage("tools", "stage:base"),
	}}

	g, err := Resolve(recipe, "tools", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	for _, s := range g.Stages {
		if s.Name == "docs" {
			t.Fatal("unrelated stage docs included in closure")
		}
	}
	if len(g.Stages) != 2 {
		t.Fatalf("len(Stages) = %d, want 2", len(g.Stages))
	}
}

func TestResolveCycle(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		stage("a", "stage:b"),
		stage("b", "stage:a"),
	}}

	_, err := Resolve(recipe, "b", nil)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("err = %v, want ErrCycle", err)
	}

	var ge *Error
	if !errors.As(err, &ge) {
		t.Fatalf("err %v does not carry a *graph.Error", err)
	}
	if ge.Stage != "a" && ge.Stage != "b" {
		t.Fatalf("cycle error names stage %q, want a or b", ge.Stage)
	}
}

func TestResolveUndeclaredBase(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		stage("a", "stage:nowhere"),
	}}

	_, err := Resolve(recipe, "a", nil)
	if !errors.Is(err, ErrUndeclaredBase) {
		t.Fatalf("err = %v, want ErrUndeclaredBase", err)
	}

	var ge *Error
	if !errors.As(err, &ge) || ge.Stage != "a" {
		t.Fatalf("err = %v, want error naming stage a", err)
	}
}

func TestResolveForwardReference(t *testing.T) {
	// b is declared, but after a, and no cycle exists. Declaration order
	// is binding, so this is an undeclared-base violation, not a cycle.
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		stage("a", "stage:b"),
		stage("b", "image:ubuntu.tar"),
	}}

	_, err := Resolve(recipe, "a", nil)
	if !errors.Is(err, ErrUndeclaredBase) {
		t.Fatalf("err = %v, want ErrUndeclaredBase", err)
	}
	if errors.Is(err, ErrCycle) {
		t.Fatalf("forward reference misreported as cycle: %v", err)
	}
}

func TestResolveCopyDependency(t *testing.T) {
	builder := stage("builder", "image:ubuntu.tar")
	app := manifest.Stage{
		Name: "app",
		From: "image:alpine.tar",
		Actions: []manifest.Action{
			{Copy: "builder:/out/tool /usr/local/bin/tool"},
		},
	}

	g, err := Resolve(&manifest.Recipe{Stages: []manifest.Stage{builder, app}}, "app", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(g.Target.Deps) != 1 || g.Target.Deps[0] != "builder" {
		t.Fatalf("app deps = %v, want [builder]", g.Target.Deps)
	}
}

func TestArgumentPrecedence(t *testing.T) {
	withUser := func(defaultValue *string) *manifest.Recipe {
		return &manifest.Recipe{Stages: []manifest.Stage{
			{
				Name: "base",
				From: "image:ubuntu.tar",
				Args: []manifest.Argument{{Name: "USERNAME", Default: defaultValue}},
				Actions: []manifest.Action{
					{Account: &manifest.Account{Username: "${USERNAME}", Default: true}},
				},
			},
		}}
	}

	t.Run("override wins over default", func(t *testing.T) {
		g, err := Resolve(withUser(strptr("developer")), "base", map[string]string{"USERNAME": "alice"})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if g.Metadata().User != "alice" {
			t.Fatalf("user = %q, want alice", g.Metadata().User)
		}
	})

	t.Run("default applies without override", func(t *testing.T) {
		g, err := Resolve(withUser(strptr("developer")), "base", nil)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if g.Metadata().User != "developer" {
			t.Fatalf("user = %q, want developer", g.Metadata().User)
		}
	})

	t.Run("referenced without value fails", func(t *testing.T) {
		_, err := Resolve(withUser(nil), "base", nil)
		if !errors.Is(err, ErrMissingArgument) {
			t.Fatalf("err = %v, want ErrMissingArgument", err)
		}
		var ge *Error
		if !errors.As(err, &ge) || ge.Argument != "USERNAME" {
			t.Fatalf("err = %v, want error naming USERNAME", err)
		}
		if !strings.Contains(err.Error(), "declared without an override or default") {
			t.Fatalf("err = %v, want declared-without-value cause", err)
		}
	})

	t.Run("unreferenced without value is fine", func(t *testing.T) {
		recipe := &manifest.Recipe{Stages: []manifest.Stage{
			{
				Name: "base",
				From: "image:ubuntu.tar",
				Args: []manifest.Argument{{Name: "UNUSED"}},
			},
		}}
		if _, err := Resolve(recipe, "base", nil); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	})
}

func TestArgumentVisibleToDescendants(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{
			Name: "base",
			From: "image:ubuntu.tar",
			Args: []manifest.Argument{{Name: "USERNAME", Default: strptr("developer")}},
		},
		{
			Name: "tools",
			From: "stage:base",
			Actions: []manifest.Action{
				{Mkdir: "/home/${USERNAME}/.local/bin"},
			},
		},
	}}

	g, err := Resolve(recipe, "tools", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got := g.Target.Actions[0].Mkdir; got != "/home/developer/.local/bin" {
		t.Fatalf("mkdir = %q, want /home/developer/.local/bin", got)
	}
}

func TestArgumentNotVisibleToSiblings(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{
			Name: "base",
			From: "image:ubuntu.tar",
			Args: []manifest.Argument{{Name: "USERNAME", Default: strptr("developer")}},
		},
		{
			Name:    "other",
			From:    "image:alpine.tar",
			Actions: []manifest.Action{{Mkdir: "/home/${USERNAME}"}},
		},
	}}

	_, err := Resolve(recipe, "other", nil)
	if !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("err = %v, want ErrMissingArgument", err)
	}
	if !strings.Contains(err.Error(), "not declared in this stage or its ancestors") {
		t.Fatalf("err = %v, want undeclared cause", err)
	}
}

func TestRuntimeArgumentsPropagate(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{
			Name: "base",
			From: "image:ubuntu.tar",
			Args: []manifest.Argument{
				{Name: "DISPLAY", Scope: manifest.ScopeRuntime, Default: strptr(":0")},
				{Name: "ROBOT_SERIAL", Scope: manifest.ScopeRuntime},
			},
		},
	}}

	g, err := Resolve(recipe, "base", map[string]string{"ROBOT_SERIAL": ""})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	meta := g.Metadata()
	if meta.RuntimeArgs["DISPLAY"] != ":0" {
		t.Fatalf("RuntimeArgs[DISPLAY] = %q, want :0", meta.RuntimeArgs["DISPLAY"])
	}
	if _, ok := meta.RuntimeArgs["ROBOT_SERIAL"]; !ok {
		t.Fatal("overridden runtime argument not bound")
	}
}

func TestRuntimeArgumentUnbound(t *testing.T) {
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{
			Name: "base",
			From: "image:ubuntu.tar",
			Args: []manifest.Argument{{Name: "ROBOT_SERIAL", Scope: manifest.ScopeRuntime}},
		},
	}}

	g, err := Resolve(recipe, "base", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	meta := g.Metadata()
	if len(meta.UnboundArgs) != 1 || meta.UnboundArgs[0] != "ROBOT_SERIAL" {
		t.Fatalf("UnboundArgs = %v, want [ROBOT_SERIAL]", meta.UnboundArgs)
	}
}
