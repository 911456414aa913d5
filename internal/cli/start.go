package cli

import (
	"context"
	"log/slog"

	"github.com/stagehandhq/stagehandd/internal/server"
)

// Represents the 'stagehandd start' command.
type StartCmd struct {
	ContainerdAddress   string `help:"Containerd socket address." placeholder:"PATH"`
	ContainerdNamespace string `help:"Containerd namespace." placeholder:"NAME"`
}

// Executes the start command.
//
// Starts the server on a Unix domain socket and blocks until the context
// is cancelled (e.g. via SIGINT or SIGTERM) or a shutdown command arrives.
func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath:          RootCmd.Socket,
		ContainerdAddress:   c.ContainerdAddress,
		ContainerdNamespace: c.ContainerdNamespace,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("stagehandd is running")

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Stop()
	}()

	srv.Wait()
	return nil
}
