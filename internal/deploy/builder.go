package deploy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ImageBuilder builds and publishes a versioned server image.
type ImageBuilder interface {
	// Build produces the image for tag from the local build context.
	Build(ctx context.Context, tag string) error
	// Push publishes the built image to the registry.
	Push(ctx context.Context, tag string) error
}

// DockerBuilder drives `docker build` / `docker push` over the CLI.
type DockerBuilder struct {
	// Image is the registry repository, e.g. registry.example.com/ensembled.
	Image string
	// ContextDir is the docker build context (repository root).
	ContextDir string
	Runner     Runner
	Log        zerolog.Logger
}

func (b *DockerBuilder) ref(tag string) string { return b.Image + ":" + tag }

func (b *DockerBuilder) Build(ctx context.Context, tag string) error {
	b.Log.Info().Str("image", b.ref(tag)).Msg("building image")
	out, err := b.Runner.Run(ctx, Cmd{
		Path: "docker",
		Args: []string{"build", "-t", b.ref(tag), b.ContextDir},
	})
	if err != nil {
		return fmt.Errorf("docker build: %w: %s", err, tail(out))
	}
	return nil
}

func (b *DockerBuilder) Push(ctx context.Context, tag string) error {
	b.Log.Info().Str("image", b.ref(tag)).Msg("pushing image")
	out, err := b.Runner.Run(ctx, Cmd{
		Path: "docker",
		Args: []string{"push", b.ref(tag)},
	})
	if err != nil {
		return fmt.Errorf("docker push: %w: %s", err, tail(out))
	}
	return nil
}

// tail keeps error messages bounded when CLI output is long.
func tail(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
