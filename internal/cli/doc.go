// Parses flags and configures logging for the stagehandd daemon.
//
// The daemon accepts the following flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	-s, --socket    Unix socket path.
//
// Subcommands: start runs the daemon on the Unix socket; build realizes a
// recipe directly against containerd; launch computes an effective launch
// configuration from realized metadata and a descriptor.
//
// Flags override build-time defaults set via linker flags. After parsing,
// the global logger is reconfigured to reflect the final level before any
// command runs.
package cli
