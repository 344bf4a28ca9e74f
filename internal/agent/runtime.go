package agent

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"ensembled/internal/deploy"
)

// Container is a handle to one running server container.
type Container struct {
	// ID is the runtime's container id.
	ID string
	// Name is the container name on the instance.
	Name string
	// Endpoint is the candidate's private base URL, e.g. http://127.0.0.1:39001.
	Endpoint string
}

// Runtime abstracts the container operations the swap executor needs.
type Runtime interface {
	// Pull fetches the image for ref from the registry.
	Pull(ctx context.Context, ref string) error
	// Start launches a container for ref bound to a private local port and
	// returns its handle.
	Start(ctx context.Context, ref, name string) (Container, error)
	// Stop stops a running container.
	Stop(ctx context.Context, c Container) error
	// Remove deletes a stopped container.
	Remove(ctx context.Context, c Container) error
}

// DockerRuntime drives the docker CLI on the instance.
type DockerRuntime struct {
	Runner deploy.Runner
	// ContainerPort is the serving port inside the container.
	ContainerPort int
	// Env is passed to started containers (store coordinates and policy).
	Env map[string]string
	Log zerolog.Logger
}

func (r *DockerRuntime) Pull(ctx context.Context, ref string) error {
	r.Log.Info().Str("ref", ref).Msg("pulling image")
	out, err := r.Runner.Run(ctx, deploy.Cmd{Path: "docker", Args: []string{"pull", ref}})
	if err != nil {
		return ErrPull(ref, fmt.Errorf("%w: %s", err, strings.TrimSpace(out)))
	}
	return nil
}

func (r *DockerRuntime) Start(ctx context.Context, ref, name string) (Container, error) {
	port, err := chooseFreePort()
	if err != nil {
		return Container{}, err
	}
	args := []string{
		"run", "-d",
		"--name", name,
		// private endpoint only; external traffic stays on the old
		// container until the pointer moves
		"-p", fmt.Sprintf("127.0.0.1:%d:%d", port, r.ContainerPort),
	}
	for k, v := range r.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, ref)
	out, err := r.Runner.Run(ctx, deploy.Cmd{Path: "docker", Args: args})
	if err != nil {
		return Container{}, fmt.Errorf("docker run: %w: %s", err, strings.TrimSpace(out))
	}
	id := strings.TrimSpace(out)
	r.Log.Info().Str("container", name).Str("id", shortID(id)).Int("port", port).Msg("candidate started")
	return Container{ID: id, Name: name, Endpoint: fmt.Sprintf("http://127.0.0.1:%d", port)}, nil
}

func (r *DockerRuntime) Stop(ctx context.Context, c Container) error {
	_, err := r.Runner.Run(ctx, deploy.Cmd{Path: "docker", Args: []string{"stop", c.Name}})
	return err
}

func (r *DockerRuntime) Remove(ctx context.Context, c Container) error {
	_, err := r.Runner.Run(ctx, deploy.Cmd{Path: "docker", Args: []string{"rm", "-f", c.Name}})
	return err
}

// chooseFreePort finds an available TCP port by asking the kernel for :0
func chooseFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr := l.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
