package docker

import (
	"context"
	"strings"
)

// RunRequest describes a requested container session. Zero-valued fields are
// omitted from the assembled invocation.
type RunRequest struct {
	// Name identifies the container. When a container with this name
	// already exists the request resumes it; when empty the new container
	// is ephemeral and auto-removed on exit.
	Name     string
	Hostname string
	Workdir  string
	Image    string
	Command  string
}

// Run resolves a run request into its terminal docker invocation and execs
// it: resume an existing named container, or create a new one. On success it
// never returns; the returned error reports an invocation failure.
func (r *Runtime) Run(ctx context.Context, req RunRequest, passthrough []string) error {
	if !r.DaemonRunning(ctx) {
		r.EnsureDaemon(ctx)
	}
	if req.Name != "" && r.ContainerExists(ctx, req.Name) {
		r.log.Infof("Container: %s already exists! Starting now...", req.Name)
		return r.exec([]string{"docker", "start", "-ia", req.Name})
	}

	var nameArgs []string
	if req.Name == "" {
		r.log.Info("Spawning a temporary container...")
		nameArgs = []string{"--rm"}
	} else {
		r.log.Infof("Spawning new container: %s...", req.Name)
		nameArgs = []string{"--name", req.Name}
	}

	argv := []string{"docker", "run", "-ti"}
	argv = append(argv, nameArgs...)
	if req.Hostname != "" {
		argv = append(argv, "--hostname", req.Hostname)
	}
	if req.Workdir != "" {
		argv = append(argv, "--workdir", req.Workdir)
	}
	argv = append(argv, passthrough...)
	argv = append(argv, req.Image, req.Command)
	argv = compact(argv)

	r.log.Debugf("Executing docker command: %s", strings.Join(argv, " "))
	return r.exec(argv)
}

// List execs a listing of all containers on the host, forwarding any
// passthrough flags verbatim.
func (r *Runtime) List(ctx context.Context, passthrough []string) error {
	if !r.DaemonRunning(ctx) {
		r.EnsureDaemon(ctx)
	}
	argv := append([]string{"docker", "ps", "-a"}, passthrough...)
	return r.exec(argv)
}

// Remove execs a removal of the given containers or images. When both are
// requested, containers take precedence: the conflict is logged with a
// corrective hint and the image list is ignored rather than aborting.
func (r *Runtime) Remove(ctx context.Context, containers, images, passthrough []string) error {
	if !r.DaemonRunning(ctx) {
		r.EnsureDaemon(ctx)
	}
	if len(containers) > 0 && len(images) > 0 {
		r.log.Error("Can't remove containers and images simultaneously!")
		r.log.Warningf(
			"Container(s) will be removed. For removing image(s) run: "+
				"xacker rm --image %s", strings.Join(images, " "),
		)
	}
	var argv []string
	switch {
	case len(containers) > 0:
		argv = append([]string{"docker", "rm"}, containers...)
	default:
		argv = append([]string{"docker", "rmi"}, images...)
	}
	argv = append(argv, passthrough...)
	r.log.Debugf("Executing docker command: %s", strings.Join(argv, " "))
	return r.exec(argv)
}

func compact(argv []string) []string {
	out := argv[:0]
	for _, arg := range argv {
		if arg != "" {
			out = append(out, arg)
		}
	}
	return out
}
