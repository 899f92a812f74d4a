// Package cli parses the xacker command line and dispatches subcommands.
// Recognized flags configure the tool itself; everything unrecognized is
// collected as passthrough and forwarded verbatim to the docker invocation.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/xames3/xacker/internal/configstore"
	"github.com/xames3/xacker/internal/docker"
	"github.com/xames3/xacker/internal/envflag"
	"github.com/xames3/xacker/internal/logging"
	"github.com/xames3/xacker/internal/telemetry"
)

var version = "dev"

// SetVersion records the build version reported by -V/--version.
func SetVersion(v string) {
	if strings.TrimSpace(v) != "" {
		version = v
	}
}

type options struct {
	subcommand string

	// Logging options, shared by every subcommand.
	verbosity   int
	level       string
	logFile     string
	maxBytes    int
	backupCount int
	format      string
	dateFormat  string
	noColor     bool
	noOutput    bool

	// Run options.
	command  string
	name     string
	workdir  string
	hostname string
	image    string
	save     bool

	// Remove options.
	containers []string
	images     []string
	force      bool

	passthrough []string
}

var errShowUsage = errors.New("show usage")

// Main parses argv and runs the selected subcommand. The returned error is a
// fatal startup failure; soft failures are logged and return nil so the
// entrypoint exits 0.
func Main(args []string) error {
	name := commandName(args)
	opts, err := parseArgs(args[1:])
	if err != nil {
		if errors.Is(err, errShowUsage) {
			fmt.Println(usage(name))
			return nil
		}
		return err
	}

	log, err := logging.Init(logging.Options{
		Level:       opts.level,
		Verbosity:   opts.verbosity,
		Format:      opts.format,
		DateFormat:  opts.dateFormat,
		NoColor:     opts.noColor,
		File:        opts.logFile,
		MaxBytes:    opts.maxBytes,
		BackupCount: opts.backupCount,
		SkipFile:    opts.noOutput,
	})
	if err != nil {
		return err
	}
	log.Debugf("Go version: %s", runtime.Version())
	log.Debugf("Start command for xacker: %s", strings.Join(args, " "))

	if opts.subcommand == "" {
		fmt.Println(usage(name))
		return nil
	}

	ctx := context.Background()
	provider, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "xacker",
		Enabled:     envflag.Enabled(telemetry.EnvTrace),
		Writer:      os.Stderr,
	}, log)
	if err != nil {
		log.WithError(err).Warning("Telemetry setup failed")
		provider = nil
	}

	return dispatch(ctx, log, provider, opts)
}

// containerRuntime is the dispatch surface of the docker runtime.
type containerRuntime interface {
	Run(ctx context.Context, req docker.RunRequest, passthrough []string) error
	List(ctx context.Context, passthrough []string) error
	Remove(ctx context.Context, containers, images, passthrough []string) error
}

var newRuntime = func(log logrus.FieldLogger) containerRuntime {
	return docker.New(log)
}

func dispatch(ctx context.Context, log *logrus.Logger, provider *telemetry.Provider, opts options) error {
	rt := newRuntime(log)

	ctx, span := provider.StartSpan(ctx, "dispatch."+opts.subcommand)
	provider.CountDispatch(ctx, opts.subcommand)
	span.End()
	if err := provider.Shutdown(ctx); err != nil {
		log.WithError(err).Debug("Telemetry shutdown failed")
	}

	switch opts.subcommand {
	case "run":
		req, err := runRequest(opts)
		if err != nil {
			return err
		}
		if opts.save {
			if err := saveDefaults(opts); err != nil {
				return err
			}
			log.Info("Session defaults saved for this project")
		}
		if req.Name == "" && req.Image == "" {
			log.Error("No arguments passed to the command!")
			return nil
		}
		return rt.Run(ctx, req, opts.passthrough)
	case "ls":
		return rt.List(ctx, opts.passthrough)
	case "rm":
		if len(opts.containers) == 0 && len(opts.images) == 0 {
			log.Error("No arguments passed to the command!")
			return nil
		}
		ok, err := confirmRemoval(ctx, opts)
		if err != nil {
			return err
		}
		if !ok {
			log.Info("Removal cancelled")
			return nil
		}
		return rt.Remove(ctx, opts.containers, opts.images, opts.passthrough)
	}
	return fmt.Errorf("unknown command %q", opts.subcommand)
}

// runRequest assembles the run request from flags layered over the persisted
// and built-in defaults.
func runRequest(opts options) (docker.RunRequest, error) {
	cfg, err := configstore.Load()
	if err != nil {
		return docker.RunRequest{}, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	defaults := cfg.Effective(cwd)

	req := docker.RunRequest{
		Name:     opts.name,
		Hostname: defaults.Hostname,
		Workdir:  defaults.Workdir,
		Image:    defaults.Image,
		Command:  opts.command,
	}
	if opts.hostname != "" {
		req.Hostname = opts.hostname
	}
	if opts.workdir != "" {
		req.Workdir = opts.workdir
	}
	if opts.image != "" {
		req.Image = opts.image
	}
	return req, nil
}

// saveDefaults persists the flag-provided session values as the project
// section for the current directory. All-empty flags clear the section.
func saveDefaults(opts options) error {
	cfg, err := configstore.Load()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	values := configstore.Defaults{
		Image:    opts.image,
		Workdir:  opts.workdir,
		Hostname: opts.hostname,
	}
	if err := cfg.SetProject(cwd, values); err != nil {
		return err
	}
	return configstore.Save(cfg)
}

func commandName(args []string) string {
	if len(args) == 0 {
		return "xacker"
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return "xacker"
	}
	return filepath.Base(name)
}

func parseArgs(args []string) (options, error) {
	opts := options{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-h", "--help", "help":
			return opts, errShowUsage
		case "-V", "--version":
			fmt.Printf("xacker v%s\n", version)
			os.Exit(0)
		case "run", "ls", "rm":
			if opts.subcommand == "" {
				opts.subcommand = arg
				continue
			}
			opts.passthrough = append(opts.passthrough, arg)
		case "-v", "--verbose":
			opts.verbosity++
		case "-vv":
			opts.verbosity += 2
		case "-l", "--level":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			opts.level, i = value, n
		case "--log":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			opts.logFile, i = value, n
		case "-b", "--max-bytes":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			bytes, err := strconv.Atoi(value)
			if err != nil {
				return opts, fmt.Errorf("invalid byte count %q for %s", value, arg)
			}
			opts.maxBytes, i = bytes, n
		case "--backup-count":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			count, err := strconv.Atoi(value)
			if err != nil {
				return opts, fmt.Errorf("invalid backup count %q", value)
			}
			opts.backupCount, i = count, n
		case "--format":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			opts.format, i = value, n
		case "--datefmt":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			opts.dateFormat, i = value, n
		case "--no-output":
			opts.noOutput = true
		case "--no-color":
			opts.noColor = true
		case "--force":
			if opts.subcommand == "rm" {
				opts.force = true
				continue
			}
			opts.passthrough = append(opts.passthrough, arg)
		case "--save":
			if opts.subcommand == "run" {
				opts.save = true
				continue
			}
			opts.passthrough = append(opts.passthrough, arg)
		case "-c", "--command", "--container":
			switch opts.subcommand {
			case "rm":
				values, n := flagValues(args, i)
				if len(values) == 0 {
					return opts, fmt.Errorf("missing argument for %s", arg)
				}
				opts.containers = append(opts.containers, values...)
				i = n
			default:
				value, n, err := flagValue(args, i, arg)
				if err != nil {
					return opts, err
				}
				opts.command, i = value, n
			}
		case "-n", "--name":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			opts.name, i = value, n
		case "-w", "--workdir":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			opts.workdir, i = value, n
		case "--hostname":
			value, n, err := flagValue(args, i, arg)
			if err != nil {
				return opts, err
			}
			opts.hostname, i = value, n
		case "-i", "--image":
			switch opts.subcommand {
			case "rm":
				values, n := flagValues(args, i)
				if len(values) == 0 {
					return opts, fmt.Errorf("missing argument for %s", arg)
				}
				opts.images = append(opts.images, values...)
				i = n
			default:
				value, n, err := flagValue(args, i, arg)
				if err != nil {
					return opts, err
				}
				opts.image, i = value, n
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--level="):
				opts.level = strings.TrimPrefix(arg, "--level=")
			case strings.HasPrefix(arg, "--log="):
				opts.logFile = strings.TrimPrefix(arg, "--log=")
			case strings.HasPrefix(arg, "--name="):
				opts.name = strings.TrimPrefix(arg, "--name=")
			case strings.HasPrefix(arg, "--image="):
				opts.image = strings.TrimPrefix(arg, "--image=")
			case strings.HasPrefix(arg, "--workdir="):
				opts.workdir = strings.TrimPrefix(arg, "--workdir=")
			case strings.HasPrefix(arg, "--hostname="):
				opts.hostname = strings.TrimPrefix(arg, "--hostname=")
			case strings.HasPrefix(arg, "--command="):
				opts.command = strings.TrimPrefix(arg, "--command=")
			default:
				// Not ours: forward verbatim to the docker invocation.
				opts.passthrough = append(opts.passthrough, arg)
			}
		}
	}
	return opts, nil
}

// flagValue consumes the single value following a flag.
func flagValue(args []string, i int, flag string) (string, int, error) {
	if i+1 >= len(args) {
		return "", i, fmt.Errorf("missing argument for %s", flag)
	}
	return args[i+1], i + 1, nil
}

// flagValues consumes every following token up to the next flag, matching
// the one-or-more signature of the removal lists.
func flagValues(args []string, i int) ([]string, int) {
	var values []string
	for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
		values = append(values, args[i+1])
		i++
	}
	return values, i
}

func usage(name string) string {
	return fmt.Sprintf(`Usage:
 %[1]s <command> [options]

xacker: A quick, easy and flexible development container thingy based on
Docker.

Commands:
  run    Run docker containers.
  ls     List docker containers.
  rm     Remove docker containers or images.

General Options:
  -h, --help               Show this help message.
  -v, --verbose            Increase the logging verbosity; additive, may be
                           used twice. Overridden by XACKER_LOGGING_LEVEL.
  -V, --version            Show xacker's installed version and exit.

Logging Options:
  --log <path>             Path for the historical session log.
  -l, --level <level>      Minimum logging level, by name or numeric value.
  -b, --max-bytes <bytes>  Log file size threshold for rotation.
  --backup-count <count>   Rotated backups to retain before discarding.
  --format <format>        Logging message format.
  --datefmt <format>       Logging message datetime format.
  --no-output              Skip logging to the session log file. Overridden
                           by XACKER_SKIP_LOGGING when set to TRUE.
  --no-color               Suppress colored output.

Run Options:
  -c, --command <command>  Command to execute in the running container.
  -n, --name <name>        Name for the container.
  -w, --workdir <path>     Working directory inside the container.
  --hostname <hostname>    Container host name.
  --image <image>          Image used for creating the container.
  --save                   Persist the provided image, workdir and hostname
                           as defaults for the current project.

Remove Options:
  -c, --container <...>    Containers to remove; takes precedence over
                           images.
  -i, --image <...>        Images to remove.
  --force                  Skip the removal confirmation prompt.

Unrecognized options are forwarded verbatim to docker.

For specific information about a particular command, run "%[1]s <command> -h".
Read complete documentation at: https://github.com/xames3/xacker`, name)
}
