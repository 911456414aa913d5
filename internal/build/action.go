package build

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/manifest"
)

// Resolves a named stage to a session for cross-stage copies.
type sessionLookup func(ctx context.Context, name string) (Session, error)

// Replays a stage's actions in declaration order against its session.
//
// Provisioning state is threaded through as an immutable snapshot chain.
// The first failing action aborts the stage with an action-failed error
// carrying the stage name and the 1-based action index; no partial state
// is exported.
func executeActions(ctx context.Context, sess Session, stage *graph.Stage, root string, lookup sessionLookup) error {
	state := newProvisionState()

	for i, action := range stage.Actions {
		next, err := executeAction(ctx, sess, action, state, root, lookup)
		if err != nil {
			return graph.ActionError(stage.Name, i+1, err)
		}
		state = next
	}

	return nil
}

// Executes a single action and returns the snapshot visible to the next.
func executeAction(ctx context.Context, sess Session, action manifest.Action, state *provisionState, root string, lookup sessionLookup) (*provisionState, error) {
	kind, err := action.Kind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case manifest.KindInstall:
		cmd := installCommand(action)
		slog.Debug("install", "target", action.InstallTarget(), "packages", action.Install)
		return state, sess.Run(ctx, defaultShell, cmd, state.environ(), "")

	case manifest.KindAccount:
		cmd := accountCommand(*action.Account)
		slog.Debug("account", "username", action.Account.Username, "sudo", action.Account.Sudo)
		return state, sess.Run(ctx, defaultShell, cmd, state.environ(), "")

	case manifest.KindEnv:
		// Environment changes live in the snapshot chain and in the stage
		// metadata; nothing runs in the container.
		return state.with(action), nil

	case manifest.KindFilesystem:
		return state, executeFilesystem(ctx, sess, action, state, root, lookup)

	default:
		return nil, fmt.Errorf("unhandled action kind %q", kind)
	}
}

// Executes a filesystem mutation: copy, chmod, or mkdir.
func executeFilesystem(ctx context.Context, sess Session, action manifest.Action, state *provisionState, root string, lookup sessionLookup) error {
	switch {
	case action.Copy != "":
		return executeCopy(ctx, sess, action.Copy, root, lookup)

	case action.Chmod != "":
		cmd, err := chmodCommand(action.Chmod)
		if err != nil {
			return err
		}
		return sess.Run(ctx, defaultShell, cmd, state.environ(), "")

	case action.Mkdir != "":
		return sess.MkdirAll(ctx, action.Mkdir)
	}

	return fmt.Errorf("empty filesystem action")
}
