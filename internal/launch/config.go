package launch

import (
	"sort"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// The fully merged, launch-ready configuration.
//
// Computed once per launch request; never persisted by this package. The
// flag fields carry the descriptor's requests verbatim.
type Configuration struct {
	User        string            `json:"user"`
	Env         map[string]string `json:"env,omitempty"`
	Privileged  bool              `json:"privileged,omitempty"`
	CapAdd      []string          `json:"capAdd,omitempty"`
	SecurityOpt []string          `json:"securityOpt,omitempty"`
	Devices     []string          `json:"devices,omitempty"`
	Mounts      []string          `json:"mounts,omitempty"`
	RunArgs     []string          `json:"runArgs,omitempty"`
	Preferences map[string]any    `json:"preferences,omitempty"`
}

// Formats the environment as a sorted list of "key=value" strings.
func (c *Configuration) Environ() []string {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// Builds an OCI runtime-spec process for the configuration.
//
// The user is carried as a username for the runtime to resolve against the
// image's /etc/passwd. Requested capabilities are granted in all capability
// sets, matching the additive semantics of a cap-add flag.
func (c *Configuration) Process() specs.Process {
	p := specs.Process{
		User: specs.User{Username: c.User},
		Env:  c.Environ(),
		Cwd:  "/",
	}

	if len(c.CapAdd) > 0 {
		caps := make([]string, len(c.CapAdd))
		for i, name := range c.CapAdd {
			caps[i] = capabilityName(name)
		}
		p.Capabilities = &specs.LinuxCapabilities{
			Bounding:  caps,
			Effective: caps,
			Permitted: caps,
		}
	}

	return p
}

// Returns the device paths as OCI runtime-spec device entries.
//
// Only the path is known at merge time; type and device numbers are
// resolved by the runtime on the launch host.
func (c *Configuration) DeviceSpecs() []specs.LinuxDevice {
	devices := make([]specs.LinuxDevice, len(c.Devices))
	for i, path := range c.Devices {
		devices[i] = specs.LinuxDevice{Path: path}
	}
	return devices
}

// Normalizes a capability name to its CAP_-prefixed spelling.
func capabilityName(name string) string {
	name = strings.ToUpper(name)
	if !strings.HasPrefix(name, "CAP_") {
		name = "CAP_" + name
	}
	return name
}
