package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/stagehandhq/stagehandd/internal"
	"github.com/stagehandhq/stagehandd/internal/build"
	"github.com/stagehandhq/stagehandd/internal/cache"
	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/launch"
	"github.com/stagehandhq/stagehandd/internal/manifest"
	"github.com/stagehandhq/stagehandd/internal/paths"
	"github.com/stagehandhq/stagehandd/internal/protocol"
)

// Handles a build command.
//
// Parses the recipe, resolves the stage graph, and realizes it against the
// container runtime. Graph failures are returned with their subtype and
// location so the client can report the offending stage or action.
func (s *Server) handleBuild(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	recipe, err := manifest.Decode([]byte(req.Recipe))
	if err != nil {
		s.respond(conn, protocol.CmdError, protocol.ErrorFrom(err))
		return
	}

	g, err := graph.Resolve(recipe, req.Target, req.Args)
	if err != nil {
		s.respond(conn, protocol.CmdError, protocol.ErrorFrom(err))
		return
	}

	output := req.Output
	if output == "" {
		output = paths.Output()
	}

	stageCache, err := cache.Open(paths.StageCache())
	if err != nil {
		slog.Warn("stage cache unavailable", "error", err)
		stageCache = nil
	}

	result, err := build.Run(ctx, build.Options{
		Graph:     g,
		Executor:  s.runtime,
		Resource:  req.Resource,
		Output:    output,
		Root:      req.Root,
		Platforms: req.Platforms,
		Cache:     stageCache,
	})
	if err != nil {
		s.respond(conn, protocol.CmdError, protocol.ErrorFrom(err))
		return
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.BuildResult{
		Output:   result.Output,
		Metadata: result.Metadata,
	})
}

// Handles a launch command.
//
// Merges realized image metadata with a runtime descriptor into an
// effective configuration. The merge is pure; no container state changes.
func (s *Server) handleLaunch(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.LaunchRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	var desc *launch.Descriptor
	if len(req.Descriptor) > 0 {
		desc, err = launch.DecodeDescriptor(req.Descriptor)
		if err != nil {
			s.respond(conn, protocol.CmdError, protocol.ErrorFrom(err))
			return
		}
	}

	cfg, err := launch.Merge(req.Metadata, desc)
	if err != nil {
		s.respond(conn, protocol.CmdError, protocol.ErrorFrom(err))
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.LaunchResult{Configuration: cfg})
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	builds := s.builds
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Builds:  builds,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}
