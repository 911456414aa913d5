package build

import (
	"fmt"
	"strings"

	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// Builds the shell command for a package install action.
//
// System installs go through apt with recommends disabled; language
// runtime installs go through pip. Both are a single command so a failing
// package fails the whole action.
func installCommand(action manifest.Action) string {
	pkgs := strings.Join(action.Install, " ")

	switch action.InstallTarget() {
	case manifest.TargetLanguageRuntime:
		return fmt.Sprintf("pip3 install --no-cache-dir %s", pkgs)
	default:
		return fmt.Sprintf(
			"apt-get update -qq && DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends %s",
			pkgs,
		)
	}
}

// Builds the shell command for an account creation action.
//
// The command chains group creation, user creation, and the privilege
// escalation policy with && so a failure at any step fails the action.
// Escalation policies reference the sudo package; the recipe must install
// it in an earlier action, which the strict ordering guarantees is visible
// here.
func accountCommand(acct manifest.Account) string {
	var parts []string

	useradd := []string{"useradd", "-m"}
	if acct.GID != 0 {
		parts = append(parts, fmt.Sprintf("groupadd -g %d %s", acct.GID, acct.Username))
		useradd = append(useradd, "-g", fmt.Sprintf("%d", acct.GID))
	}
	if acct.UID != 0 {
		useradd = append(useradd, "-u", fmt.Sprintf("%d", acct.UID))
	}
	if acct.Shell != "" {
		useradd = append(useradd, "-s", acct.Shell)
	}
	useradd = append(useradd, acct.Username)
	parts = append(parts, strings.Join(useradd, " "))

	switch acct.Sudo {
	case manifest.SudoPassword:
		parts = append(parts, fmt.Sprintf("usermod -aG sudo %s", acct.Username))
	case manifest.SudoPasswordless:
		sudoers := fmt.Sprintf("/etc/sudoers.d/%s", acct.Username)
		parts = append(parts,
			fmt.Sprintf("echo '%s ALL=(ALL) NOPASSWD:ALL' > %s", acct.Username, sudoers),
			fmt.Sprintf("chmod 0440 %s", sudoers),
		)
	}

	return strings.Join(parts, " && ")
}

// Builds the shell command for a chmod filesystem action.
//
// The action string is "mode path".
func chmodCommand(spec string) (string, error) {
	parts := strings.Fields(spec)
	if len(parts) != 2 {
		return "", fmt.Errorf("chmod expects mode and path, got %q", spec)
	}
	return fmt.Sprintf("chmod %s %s", parts[0], parts[1]), nil
}
