package manifest

import (
	"fmt"
)

// The variant an action represents.
type ActionKind string

const (
	// Installs packages into the system or language runtime.
	KindInstall ActionKind = "install"

	// Creates a user account, optionally designating the image default.
	KindAccount ActionKind = "account"

	// Sets or appends an environment variable.
	KindEnv ActionKind = "env"

	// Mutates the filesystem (copy, chmod, mkdir).
	KindFilesystem ActionKind = "filesystem"
)

// Targets for package installation.
const (
	// System package manager (apt).
	TargetSystem = "system"

	// Language runtime package manager (pip).
	TargetLanguageRuntime = "language-runtime"
)

// Privilege escalation policies for created accounts.
const (
	// No escalation.
	SudoNone = "none"

	// Member of the sudo group, password required.
	SudoPassword = "sudo"

	// Passwordless sudo via a sudoers drop-in.
	SudoPasswordless = "passwordless"
)

// One atomic provisioning operation within a stage.
//
// Exactly one of the operation fields (Install, Account, Env, Copy, Chmod,
// Mkdir) must be set. Target qualifies Install and is otherwise invalid.
// Actions execute strictly in declaration order; each observes the
// cumulative state left by all prior actions in the ancestor chain and the
// same stage.
type Action struct {
	Install []string `yaml:"install,omitempty" json:"install,omitempty"`
	Target  string   `yaml:"target,omitempty" json:"target,omitempty"`
	Account *Account `yaml:"account,omitempty" json:"account,omitempty"`
	Env     *EnvVar  `yaml:"env,omitempty" json:"env,omitempty"`
	Copy    string   `yaml:"copy,omitempty" json:"copy,omitempty"`
	Chmod   string   `yaml:"chmod,omitempty" json:"chmod,omitempty"`
	Mkdir   string   `yaml:"mkdir,omitempty" json:"mkdir,omitempty"`
}

// A user account created during provisioning.
type Account struct {
	Username string `yaml:"username" json:"username"`
	UID      int    `yaml:"uid,omitempty" json:"uid,omitempty"`
	GID      int    `yaml:"gid,omitempty" json:"gid,omitempty"`
	Shell    string `yaml:"shell,omitempty" json:"shell,omitempty"`
	Sudo     string `yaml:"sudo,omitempty" json:"sudo,omitempty"`
	Default  bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

// An environment variable change.
//
// When Append is set the value is appended to any existing value with a
// colon separator, the convention for search-path variables. Appends to
// PATH-style variables surface as path-prefix additions in the realized
// graph metadata.
type EnvVar struct {
	Name   string `yaml:"name" json:"name"`
	Value  string `yaml:"value" json:"value"`
	Append bool   `yaml:"append,omitempty" json:"append,omitempty"`
}

// Classifies the action and checks that it describes exactly one operation.
func (a Action) Kind() (ActionKind, error) {
	var kinds []ActionKind

	if len(a.Install) > 0 {
		kinds = append(kinds, KindInstall)
	}
	if a.Account != nil {
		kinds = append(kinds, KindAccount)
	}
	if a.Env != nil {
		kinds = append(kinds, KindEnv)
	}
	if a.Copy != "" || a.Chmod != "" || a.Mkdir != "" {
		kinds = append(kinds, KindFilesystem)
	}

	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("action describes no operation")
	case 1:
	default:
		return "", fmt.Errorf("action describes multiple operations (%v)", kinds)
	}

	kind := kinds[0]

	if kind == KindFilesystem {
		set := 0
		for _, s := range []string{a.Copy, a.Chmod, a.Mkdir} {
			if s != "" {
				set++
			}
		}
		if set > 1 {
			return "", fmt.Errorf("action describes multiple filesystem operations")
		}
	}

	if a.Target != "" {
		if kind != KindInstall {
			return "", fmt.Errorf("target %q is only valid on install actions", a.Target)
		}
		if a.Target != TargetSystem && a.Target != TargetLanguageRuntime {
			return "", fmt.Errorf("unknown install target %q", a.Target)
		}
	}

	if kind == KindAccount {
		if a.Account.Username == "" {
			return "", fmt.Errorf("account action has no username")
		}
		switch a.Account.Sudo {
		case "", SudoNone, SudoPassword, SudoPasswordless:
		default:
			return "", fmt.Errorf("unknown sudo policy %q", a.Account.Sudo)
		}
	}

	if kind == KindEnv && a.Env.Name == "" {
		return "", fmt.Errorf("env action has no variable name")
	}

	return kind, nil
}

// Returns the install target, defaulting to the system package manager.
func (a Action) InstallTarget() string {
	if a.Target == "" {
		return TargetSystem
	}
	return a.Target
}
