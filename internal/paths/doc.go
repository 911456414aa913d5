// Package paths centralizes filesystem locations for the daemon, derived
// from the XDG base directory specification.
package paths
