package runtime

import (
	"reflect"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestMergeConfigEnv(t *testing.T) {
	base := []string{
		"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		"LANG=C.UTF-8",
	}

	tests := []struct {
		name    string
		updates []string
		want    []string
	}{
		{
			name:    "search path extends base value",
			updates: []string{"PATH=/home/x/.local/bin"},
			want: []string{
				"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin:/home/x/.local/bin",
				"LANG=C.UTF-8",
			},
		},
		{
			name:    "search path entries already present are not repeated",
			updates: []string{"PATH=/usr/bin:/opt/tools/bin"},
			want: []string{
				"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin:/opt/tools/bin",
				"LANG=C.UTF-8",
			},
		},
		{
			name:    "plain variable overrides base value",
			updates: []string{"LANG=en_US.UTF-8"},
			want: []string{
				"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
				"LANG=en_US.UTF-8",
			},
		},
		{
			name:    "new variable appended",
			updates: []string{"ROS_DISTRO=humble"},
			want: []string{
				"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
				"LANG=C.UTF-8",
				"ROS_DISTRO=humble",
			},
		},
		{
			name:    "search path absent from base set verbatim",
			updates: []string{"PYTHONPATH=/opt/robot/lib"},
			want: []string{
				"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
				"LANG=C.UTF-8",
				"PYTHONPATH=/opt/robot/lib",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeConfigEnv(base, tt.updates)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("merged env = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeConfigEnvDoesNotModifyBase(t *testing.T) {
	base := []string{"PATH=/usr/bin"}
	mergeConfigEnv(base, []string{"PATH=/opt/bin", "LANG=C"})
	if base[0] != "PATH=/usr/bin" {
		t.Fatalf("base env modified: %v", base)
	}
}

func TestManifestGCLabels(t *testing.T) {
	m := ocispec.Manifest{
		Config: ocispec.Descriptor{
			Digest: digest.FromString("config"),
		},
		Layers: []ocispec.Descriptor{
			{Digest: digest.FromString("layer0")},
			{Digest: digest.FromString("layer1")},
		},
	}

	labels := manifestGCLabels(m)

	configLabel := labels["containerd.io/gc.ref.content.config"]
	if configLabel != m.Config.Digest.String() {
		t.Fatalf("config label = %q, want %q", configLabel, m.Config.Digest.String())
	}

	for i, layer := range m.Layers {
		key := "containerd.io/gc.ref.content.l." + string(rune('0'+i))
		got := labels[key]
		if got != layer.Digest.String() {
			t.Fatalf("labels[%q] = %q, want %q", key, got, layer.Digest.String())
		}
	}

	if len(labels) != 3 {
		t.Fatalf("len(labels) = %d, want 3", len(labels))
	}
}

func TestIndexGCLabels(t *testing.T) {
	idx := ocispec.Index{
		Manifests: []ocispec.Descriptor{
			{Digest: digest.FromString("m0")},
			{Digest: digest.FromString("m1")},
		},
	}

	labels := indexGCLabels(idx)
	if len(labels) != 2 {
		t.Fatalf("len(labels) = %d, want 2", len(labels))
	}
	if labels["containerd.io/gc.ref.content.m.0"] != idx.Manifests[0].Digest.String() {
		t.Fatal("manifest 0 label mismatch")
	}
	if labels["containerd.io/gc.ref.content.m.1"] != idx.Manifests[1].Digest.String() {
		t.Fatal("manifest 1 label mismatch")
	}
}
