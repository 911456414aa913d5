// Package runtime manages stage build containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and satisfies the build
// package's executor contract. Base OCI archives are imported, tagged with
// a deterministic content hash, unpacked for the target platform, and used
// to create containers with overlayfs snapshots.
//
// Each [Session] wraps a running containerd task. Provisioning commands
// execute inside the container, files are copied in and out as tar streams,
// and the final filesystem state is committed and exported as a new OCI
// archive with the stage's declared user and environment written into the
// image config. When the session is no longer needed it should be destroyed
// to release its snapshot and task resources.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "stagehand")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	sess, err := rt.StartStage(ctx, "debian.tar", "bench-stage-base", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//	defer sess.Destroy(ctx)
//
//	if err := sess.Run(ctx, "/bin/sh", "apt-get install -y git", nil, ""); err != nil {
//	    return err
//	}
//
//	err = sess.Export(ctx, "out/base.tar", build.ExportMeta{User: "developer"})
package runtime
