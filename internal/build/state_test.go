package build

import (
	"testing"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

func envAction(name, value string, appendVal bool) manifest.Action {
	return manifest.Action{Env: &manifest.EnvVar{Name: name, Value: value, Append: appendVal}}
}

func TestNewProvisionState(t *testing.T) {
	s := newProvisionState()
	if len(s.env) != 0 {
		t.Fatalf("env = %v, want empty", s.env)
	}
	if len(s.environ()) != 0 {
		t.Fatal("empty state should produce no environ entries")
	}
}

func TestProvisionStateWith(t *testing.T) {
	s := newProvisionState()

	s = s.with(envAction("DEBUG", "1", false))
	if s.env["DEBUG"] != "1" {
		t.Fatalf("env[DEBUG] = %q, want 1", s.env["DEBUG"])
	}

	s = s.with(envAction("DEBUG", "0", false))
	if s.env["DEBUG"] != "0" {
		t.Fatalf("env[DEBUG] = %q, want 0 after override", s.env["DEBUG"])
	}

	s = s.with(envAction("PATH", "/usr/bin", false))
	s = s.with(envAction("PATH", "/opt/bin", true))
	if s.env["PATH"] != "/usr/bin:/opt/bin" {
		t.Fatalf("env[PATH] = %q, want /usr/bin:/opt/bin", s.env["PATH"])
	}
}

func TestProvisionStateAppendWithoutBase(t *testing.T) {
	s := newProvisionState().with(envAction("PYTHONPATH", "/app/lib", true))
	if s.env["PYTHONPATH"] != "/app/lib" {
		t.Fatalf("env[PYTHONPATH] = %q, want /app/lib", s.env["PYTHONPATH"])
	}
}

func TestProvisionStateSnapshotsAreIndependent(t *testing.T) {
	base := newProvisionState().with(envAction("A", "1", false))
	next := base.with(envAction("A", "2", false))

	if base.env["A"] != "1" {
		t.Fatalf("base env[A] mutated to %q", base.env["A"])
	}
	if next.env["A"] != "2" {
		t.Fatalf("next env[A] = %q, want 2", next.env["A"])
	}
}

func TestProvisionStateNonEnvActionNoOp(t *testing.T) {
	s := newProvisionState().with(envAction("A", "1", false))
	same := s.with(manifest.Action{Install: []string{"git"}})
	if same != s {
		t.Fatal("non-env action should return the same snapshot")
	}
}

func TestProvisionStateEnviron(t *testing.T) {
	s := newProvisionState().
		with(envAction("HOME", "/home/dev", false)).
		with(envAction("DEBUG", "1", false))

	env := s.environ()
	if len(env) != 2 {
		t.Fatalf("len(environ) = %d, want 2", len(env))
	}

	m := make(map[string]bool)
	for _, e := range env {
		m[e] = true
	}
	if !m["HOME=/home/dev"] || !m["DEBUG=1"] {
		t.Fatalf("environ = %v, want HOME=/home/dev and DEBUG=1", env)
	}
}
