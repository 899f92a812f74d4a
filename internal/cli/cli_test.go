package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/xames3/xacker/internal/configstore"
	"github.com/xames3/xacker/internal/docker"
)

// stubRuntime records dispatch calls instead of reaching the docker binary.
type stubRuntime struct {
	runs    []docker.RunRequest
	lists   int
	removes int
}

func (s *stubRuntime) Run(_ context.Context, req docker.RunRequest, _ []string) error {
	s.runs = append(s.runs, req)
	return nil
}

func (s *stubRuntime) List(_ context.Context, _ []string) error {
	s.lists++
	return nil
}

func (s *stubRuntime) Remove(_ context.Context, _, _, _ []string) error {
	s.removes++
	return nil
}

func stubDispatchRuntime(t *testing.T) *stubRuntime {
	t.Helper()
	rt := &stubRuntime{}
	orig := newRuntime
	newRuntime = func(logrus.FieldLogger) containerRuntime { return rt }
	t.Cleanup(func() { newRuntime = orig })
	return rt
}

func lastErrorMessage(hook *test.Hook) string {
	for i := len(hook.AllEntries()) - 1; i >= 0; i-- {
		if hook.AllEntries()[i].Level == logrus.ErrorLevel {
			return hook.AllEntries()[i].Message
		}
	}
	return ""
}

func TestParseArgsRunFlags(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{
		"run", "-n", "dev", "--image", "python:3.10",
		"-w", "/srv/code", "--hostname", "dev-box", "-c", "bash",
	})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}

	if opts.subcommand != "run" {
		t.Fatalf("expected run subcommand, got %q", opts.subcommand)
	}
	if opts.name != "dev" || opts.image != "python:3.10" {
		t.Fatalf("unexpected name/image: %q %q", opts.name, opts.image)
	}
	if opts.workdir != "/srv/code" || opts.hostname != "dev-box" || opts.command != "bash" {
		t.Fatalf("unexpected run options: %+v", opts)
	}
}

func TestParseArgsPassthrough(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{"run", "--image", "python:3.10", "--net", "host", "-p", "8080:80"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}

	want := []string{"--net", "host", "-p", "8080:80"}
	if len(opts.passthrough) != len(want) {
		t.Fatalf("unexpected passthrough: %v", opts.passthrough)
	}
	for i := range want {
		if opts.passthrough[i] != want[i] {
			t.Fatalf("passthrough %d mismatch: got %q want %q", i, opts.passthrough[i], want[i])
		}
	}
}

func TestParseArgsVerbosityAdditive(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{"ls", "-v", "-v"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}
	if opts.verbosity != 2 {
		t.Fatalf("expected verbosity 2, got %d", opts.verbosity)
	}

	opts, err = parseArgs([]string{"ls", "-vv"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}
	if opts.verbosity != 2 {
		t.Fatalf("expected verbosity 2 from -vv, got %d", opts.verbosity)
	}
}

func TestParseArgsLoggingFlags(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{
		"ls", "--level", "DEBUG", "--log", "/tmp/x.log",
		"-b", "1024", "--backup-count", "3",
		"--format", "{level} {message}", "--datefmt", "2006-01-02",
		"--no-color", "--no-output",
	})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}

	if opts.level != "DEBUG" || opts.logFile != "/tmp/x.log" {
		t.Fatalf("unexpected level/log: %q %q", opts.level, opts.logFile)
	}
	if opts.maxBytes != 1024 || opts.backupCount != 3 {
		t.Fatalf("unexpected rotation options: %d %d", opts.maxBytes, opts.backupCount)
	}
	if opts.format != "{level} {message}" || opts.dateFormat != "2006-01-02" {
		t.Fatalf("unexpected format options: %q %q", opts.format, opts.dateFormat)
	}
	if !opts.noColor || !opts.noOutput {
		t.Fatalf("expected suppression flags set: %+v", opts)
	}
}

func TestParseArgsEqualsForms(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{"run", "--image=python:3.10", "--name=dev", "--level=INFO"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}
	if opts.image != "python:3.10" || opts.name != "dev" || opts.level != "INFO" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestParseArgsRemovalLists(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{"rm", "-c", "a", "b", "-i", "img1", "--force"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}

	if len(opts.containers) != 2 || opts.containers[0] != "a" || opts.containers[1] != "b" {
		t.Fatalf("unexpected containers: %v", opts.containers)
	}
	if len(opts.images) != 1 || opts.images[0] != "img1" {
		t.Fatalf("unexpected images: %v", opts.images)
	}
	if !opts.force {
		t.Fatal("expected force to be set")
	}
}

func TestParseArgsShortFlagsPerSubcommand(t *testing.T) {
	t.Parallel()

	// -c and -i mean command/image on run but container/image lists on rm.
	opts, err := parseArgs([]string{"run", "-c", "bash", "-i", "python:3.10"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}
	if opts.command != "bash" || opts.image != "python:3.10" {
		t.Fatalf("unexpected run options: %+v", opts)
	}
	if len(opts.containers) != 0 || len(opts.images) != 0 {
		t.Fatalf("removal lists must stay empty on run: %+v", opts)
	}
}

func TestParseArgsMissingValue(t *testing.T) {
	t.Parallel()

	if _, err := parseArgs([]string{"run", "--image"}); err == nil {
		t.Fatal("expected error for missing flag value")
	}
	if _, err := parseArgs([]string{"rm", "-c"}); err == nil {
		t.Fatal("expected error for empty removal list")
	}
}

func TestParseArgsHelp(t *testing.T) {
	t.Parallel()

	if _, err := parseArgs([]string{"-h"}); !errors.Is(err, errShowUsage) {
		t.Fatalf("expected usage sentinel, got %v", err)
	}
	if _, err := parseArgs([]string{"run", "--help"}); !errors.Is(err, errShowUsage) {
		t.Fatalf("expected usage sentinel, got %v", err)
	}
}

func TestCommandName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		args []string
		want string
	}{
		{nil, "xacker"},
		{[]string{""}, "xacker"},
		{[]string{"/usr/local/bin/xacker"}, "xacker"},
		{[]string{"./xacker"}, "xacker"},
	}
	for _, tc := range cases {
		if got := commandName(tc.args); got != tc.want {
			t.Fatalf("commandName(%v) = %q, want %q", tc.args, got, tc.want)
		}
	}
}

func TestRunRequestLayersDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XACKER_HOME", home)

	config := `[defaults]
image = "python:3.10"
hostname = "configured-box"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := runRequest(options{subcommand: "run", workdir: "/srv/code"})
	if err != nil {
		t.Fatalf("runRequest returned error: %v", err)
	}

	if req.Image != "python:3.10" {
		t.Fatalf("expected configured image, got %q", req.Image)
	}
	if req.Hostname != "configured-box" {
		t.Fatalf("expected configured hostname, got %q", req.Hostname)
	}
	if req.Workdir != "/srv/code" {
		t.Fatalf("expected flag to beat config, got %q", req.Workdir)
	}
}

func TestDispatchRunWithoutArgumentsSoftFails(t *testing.T) {
	t.Setenv("XACKER_HOME", t.TempDir())
	rt := stubDispatchRuntime(t)
	log, hook := test.NewNullLogger()

	err := dispatch(context.Background(), log, nil, options{subcommand: "run"})
	if err != nil {
		t.Fatalf("expected soft failure to return nil, got %v", err)
	}
	if len(rt.runs) != 0 {
		t.Fatalf("expected no runtime invocation, got %d", len(rt.runs))
	}
	if got := lastErrorMessage(hook); got != "No arguments passed to the command!" {
		t.Fatalf("unexpected error message: %q", got)
	}
}

func TestDispatchRemoveWithoutArgumentsSoftFails(t *testing.T) {
	rt := stubDispatchRuntime(t)
	log, hook := test.NewNullLogger()

	err := dispatch(context.Background(), log, nil, options{subcommand: "rm"})
	if err != nil {
		t.Fatalf("expected soft failure to return nil, got %v", err)
	}
	if rt.removes != 0 {
		t.Fatalf("expected no runtime invocation, got %d", rt.removes)
	}
	if got := lastErrorMessage(hook); got != "No arguments passed to the command!" {
		t.Fatalf("unexpected error message: %q", got)
	}
}

func TestDispatchListInvokesRuntime(t *testing.T) {
	rt := stubDispatchRuntime(t)
	log, _ := test.NewNullLogger()

	if err := dispatch(context.Background(), log, nil, options{subcommand: "ls"}); err != nil {
		t.Fatalf("dispatch returned error: %v", err)
	}
	if rt.lists != 1 {
		t.Fatalf("expected one listing invocation, got %d", rt.lists)
	}
}

func TestDispatchRunSavesProjectDefaults(t *testing.T) {
	t.Setenv("XACKER_HOME", t.TempDir())
	rt := stubDispatchRuntime(t)
	log, _ := test.NewNullLogger()

	opts := options{subcommand: "run", image: "golang:1.23", workdir: "/srv/code", save: true}
	if err := dispatch(context.Background(), log, nil, opts); err != nil {
		t.Fatalf("dispatch returned error: %v", err)
	}
	if len(rt.runs) != 1 {
		t.Fatalf("expected one run invocation, got %d", len(rt.runs))
	}

	cfg, err := configstore.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd returned error: %v", err)
	}
	got := cfg.Effective(cwd)
	if got.Image != "golang:1.23" || got.Workdir != "/srv/code" {
		t.Fatalf("expected persisted project defaults, got %+v", got)
	}
}

func TestParseArgsSaveFlag(t *testing.T) {
	t.Parallel()

	opts, err := parseArgs([]string{"run", "--image", "golang:1.23", "--save"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}
	if !opts.save {
		t.Fatal("expected save flag on run")
	}

	opts, err = parseArgs([]string{"ls", "--save"})
	if err != nil {
		t.Fatalf("parseArgs returned error: %v", err)
	}
	if opts.save {
		t.Fatal("save flag must not apply outside run")
	}
	if len(opts.passthrough) != 1 || opts.passthrough[0] != "--save" {
		t.Fatalf("expected --save forwarded as passthrough, got %v", opts.passthrough)
	}
}

func TestRunRequestFlagWins(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XACKER_HOME", home)

	config := "[defaults]\nimage = \"python:3.10\"\n"
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := runRequest(options{subcommand: "run", image: "golang:1.23"})
	if err != nil {
		t.Fatalf("runRequest returned error: %v", err)
	}
	if req.Image != "golang:1.23" {
		t.Fatalf("expected flag image to win, got %q", req.Image)
	}
}
