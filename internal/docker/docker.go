// Package docker decides which docker invocation serves a request and hands
// the terminal invocation off to the process executor. Every interaction
// with the runtime is a synchronous child-process call against the docker
// binary; the final run/list/remove invocation replaces the current process
// image instead.
package docker

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// daemonWait is the flat grace period granted to a freshly started daemon.
// The start request is best effort and never polled; callers proceed
// optimistically once the wait elapses.
const daemonWait = 20 * time.Second

// Runtime wraps the docker CLI on the local host.
type Runtime struct {
	log  logrus.FieldLogger
	wait time.Duration
}

// New returns a Runtime that reports its activity on log.
func New(log logrus.FieldLogger) *Runtime {
	return &Runtime{log: log, wait: daemonWait}
}

// Function seams for tests; production code never swaps these.
var (
	statusQuery   = statusQueryImpl
	commandOutput = commandOutputImpl
	startDaemon   = startDaemonImpl
	sleep         = time.Sleep
	execProcess   = execProcessImpl
)

// DaemonRunning probes daemon liveness with a lightweight status query. The
// result is derived fresh on every call and all diagnostic output from the
// probe is discarded.
func (r *Runtime) DaemonRunning(ctx context.Context) bool {
	r.log.Debug("Checking if the docker daemon is running...")
	return statusQuery(ctx) == nil
}

// EnsureDaemon starts the daemon when it is unreachable and grants it a
// fixed grace period to come up. A failed start request is indistinguishable
// from a slow-starting daemon; either way the caller proceeds afterwards.
func (r *Runtime) EnsureDaemon(ctx context.Context) {
	if r.DaemonRunning(ctx) {
		r.log.Info("Docker daemon is running...")
		return
	}
	r.log.Warning("Docker daemon is not running. Starting docker...")
	if err := startDaemon(ctx); err != nil {
		r.log.WithError(err).Debug("Daemon start request failed")
	}
	r.log.Infof(
		"Docker daemon starting in the background, expected start time %.0f secs",
		r.wait.Seconds(),
	)
	sleep(r.wait)
	r.log.Info("Docker daemon is running...")
}

// ContainerExists reports whether name matches, verbatim, the identifier of
// any container on the host, running or stopped. An empty listing reports
// false.
func (r *Runtime) ContainerExists(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	r.log.Info("Checking if the container exists...")
	out, err := commandOutput(ctx, "docker", "ps", "-a")
	if err != nil {
		r.log.WithError(err).Debug("Container listing failed")
		return false
	}
	for _, id := range containerNames(out) {
		if id == name {
			return true
		}
	}
	return false
}

// containerNames extracts the last whitespace-delimited field of every
// non-header line in a docker ps listing.
func containerNames(listing string) []string {
	lines := strings.Split(strings.TrimRight(listing, "\n"), "\n")
	if len(lines) <= 1 {
		return nil
	}
	names := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[len(fields)-1])
	}
	return names
}

// exec replaces the current process image with the given invocation,
// inheriting stdio. It only returns on failure: an unresolvable executable
// is a fatal startup error for the caller.
func (r *Runtime) exec(argv []string) error {
	return execProcess(argv)
}

func statusQueryImpl(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "ps")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

func commandOutputImpl(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// startDaemonImpl issues a non-blocking start request to the platform's
// daemon launcher.
func startDaemonImpl(ctx context.Context) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "--background", "-a", "Docker")
	default:
		cmd = exec.CommandContext(ctx, "systemctl", "start", "--no-block", "docker")
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

func execProcessImpl(argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	return unix.Exec(path, argv, os.Environ())
}
