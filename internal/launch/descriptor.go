package launch

import (
	"encoding/json"
	"os"
	"sort"
)

// Externally supplied settings describing how to launch a container
// instance from a built image.
//
// The launch flag fields (capabilities, security options, devices, mounts,
// raw runtime arguments) are passed through to the effective configuration
// verbatim; this package merges structure, it does not enforce security
// policy and it never drops a requested flag.
type Descriptor struct {
	User        string            `json:"user,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Privileged  bool              `json:"privileged,omitempty"`
	CapAdd      []string          `json:"capAdd,omitempty"`
	SecurityOpt []string          `json:"securityOpt,omitempty"`
	Devices     []string          `json:"devices,omitempty"`
	Mounts      []string          `json:"mounts,omitempty"`
	RunArgs     []string          `json:"runArgs,omitempty"`

	// Opaque editor/tooling preference tree, deep-merged over the image's
	// declared preferences. Must round-trip losslessly.
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Per-setting decoders. Decoding each setting separately lets a shape
// error name the setting that caused it.
var settingDecoders = map[string]func(*Descriptor, json.RawMessage) error{
	"user":        func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.User) },
	"env":         func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.Env) },
	"privileged":  func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.Privileged) },
	"capAdd":      func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.CapAdd) },
	"securityOpt": func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.SecurityOpt) },
	"devices":     func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.Devices) },
	"mounts":      func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.Mounts) },
	"runArgs":     func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.RunArgs) },
	"preferences": func(d *Descriptor, raw json.RawMessage) error { return json.Unmarshal(raw, &d.Preferences) },
}

// Decodes a runtime descriptor from JSON.
//
// A value with the wrong shape for a known setting fails with
// [ErrInvalidSetting] naming the setting. Unknown settings are rejected the
// same way: a setting this package cannot represent would otherwise be
// dropped silently from the merge, and the merge must be lossless.
func DecodeDescriptor(data []byte) (*Descriptor, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &Error{Kind: ErrInvalidSetting, Setting: "descriptor", Err: err}
	}

	d := &Descriptor{}

	// Sorted for deterministic first-error reporting.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decode, ok := settingDecoders[name]
		if !ok {
			return nil, &Error{Kind: ErrInvalidSetting, Setting: name}
		}
		if err := decode(d, fields[name]); err != nil {
			return nil, &Error{Kind: ErrInvalidSetting, Setting: name, Err: err}
		}
	}

	return d, nil
}

// Reads and decodes a runtime descriptor from a JSON file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeDescriptor(data)
}
