// Package registry implements the push step: publishing a locally built
// image tag to a container registry.
//
// The implementation uses go-containerregistry rather than shelling out
// to `docker push`: the library reads the image from the local engine via
// its daemon transport, writes it to the remote registry directly, and
// reuses the user's existing credential helpers through the default
// keychain — the same auth chain `docker push` would use.
package registry

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// PushImage publishes the given image reference from the local Docker
// engine to its registry. The registry host is part of the reference
// (e.g. "registry.example.com/webapp:latest"); a bare reference
// pushes to Docker Hub.
//
// Returns the digest of the pushed image on success, and a CLIError with
// ExitPushFailed on any failure (bad reference, image not found locally,
// registry rejection).
func PushImage(ctx context.Context, image string) (string, error) {
	ref, err := name.ParseReference(image)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitPushFailed,
			fmt.Sprintf("invalid image reference %q", image),
			err,
		)
	}

	// Read the image out of the local engine. This fails when the tag
	// does not exist locally — typically a pipeline ordering mistake
	// (push stage before build stage).
	img, err := daemon.Image(ref, daemon.WithContext(ctx))
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitPushFailed,
			fmt.Sprintf("failed to read image %q from local engine — was it built?", image),
			err,
		)
	}

	// The default keychain resolves credentials the same way the docker
	// CLI does: config.json, credential helpers, environment.
	err = remote.Write(ref, img,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitPushFailed,
			fmt.Sprintf("failed to push %q", image),
			err,
		)
	}

	digest, err := img.Digest()
	if err != nil {
		// The push itself succeeded; a digest computation failure only
		// degrades the report, so surface it as such.
		return "", model.WrapCLIError(
			model.ExitPushFailed,
			fmt.Sprintf("pushed %q but failed to compute its digest", image),
			err,
		)
	}

	return digest.String(), nil
}
