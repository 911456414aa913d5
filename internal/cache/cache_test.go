package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

func TestKeyDeterministic(t *testing.T) {
	actions := []manifest.Action{{Install: []string{"sudo", "i2c-tools"}}}
	args := map[string]string{"USERNAME": "developer"}

	a, err := Key("image:ubuntu.tar", args, actions)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	b, err := Key("image:ubuntu.tar", map[string]string{"USERNAME": "developer"}, actions)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}

	if a != b {
		t.Fatalf("identical inputs produced different keys: %s vs %s", a, b)
	}
}

func TestKeySensitivity(t *testing.T) {
	base := "image:ubuntu.tar"
	args := map[string]string{"USERNAME": "developer"}
	actions := []manifest.Action{{Install: []string{"sudo"}}}

	orig, err := Key(base, args, actions)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}

	tests := []struct {
		name    string
		base    string
		args    map[string]string
		actions []manifest.Action
	}{
		{name: "different base", base: "image:debian.tar", args: args, actions: actions},
		{name: "different argument value", base: base, args: map[string]string{"USERNAME": "alice"}, actions: actions},
		{name: "different action", base: base, args: args, actions: []manifest.Action{{Install: []string{"vim"}}}},
		{name: "reordered actions", base: base, args: args, actions: []manifest.Action{
			{Mkdir: "/opt"}, {Install: []string{"sudo"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Key(tt.base, tt.args, tt.actions)
			if err != nil {
				t.Fatalf("Key: %v", err)
			}
			if k == orig {
				t.Fatal("changed input produced the same key")
			}
		})
	}
}

func TestGetMissesWithoutExactKey(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	archive := filepath.Join(t.TempDir(), "image.tar")
	if err := os.WriteFile(archive, []byte("layers"), 0o644); err != nil {
		t.Fatal(err)
	}

	key, err := Key("image:ubuntu.tar", nil, []manifest.Action{{Install: []string{"sudo"}}})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if _, err := c.Put(key, archive); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The stale-reuse hazard: a near-miss key must not be served.
	stale, err := Key("image:ubuntu.tar", nil, []manifest.Action{{Install: []string{"sudo", "vim"}}})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if _, ok := c.Get(stale); ok {
		t.Fatal("cache served an entry for a non-matching key")
	}

	if _, ok := c.Get(key); !ok {
		t.Fatal("cache missed the exact key")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	archive := filepath.Join(t.TempDir(), "image.tar")
	if err := os.WriteFile(archive, []byte("layer data"), 0o644); err != nil {
		t.Fatal(err)
	}

	key, err := Key("image:ubuntu.tar", nil, nil)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}

	stored, err := c.Put(key, archive)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get missed after Put")
	}
	if got != stored {
		t.Fatalf("Get path = %q, want %q", got, stored)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "layer data" {
		t.Fatalf("cached content = %q, want %q", data, "layer data")
	}
}
