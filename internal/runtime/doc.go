// Package runtime runs build containers on containerd.
//
// A [Runtime] connects to a containerd daemon. Base images come either from
// a registry (pulled for the target platform on first use) or from an OCI
// archive on the host. Each [Container] wraps a task that idles so that
// commands can be executed inside it; files move in and out as tar streams.
// When a stage is complete, [Container.Export] commits the container's
// changes as a single layer and writes an OCI archive with a caller-supplied
// image config.
//
// Example usage:
//
//	rt, err := runtime.New(runtime.Options{
//	    Address:   "/run/containerd/containerd.sock",
//	    Namespace: "bootpack",
//	})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	ctr, err := rt.StartContainer(ctx, "debian:bookworm-slim", "svc-runtime", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	if _, err := ctr.Exec(ctx, "/bin/sh", "mkdir -p /app/data", nil, ""); err != nil {
//	    return err
//	}
//
//	err = ctr.Export(ctx, "dist", "svc:latest", func(cfg *ocispec.ImageConfig) {
//	    cfg.User = "appuser"
//	})
package runtime
