package executer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

//go:generate mockgen -source=executer.go -destination=mock_executer.go -package=executer

// Executer runs external commands and reports their captured output and exit
// code. It is the only process boundary in this codebase: everything above it
// deals in argument lists and captured text.
type Executer interface {
	CommandContext(ctx context.Context, command string, args ...string) *exec.Cmd
	Execute(command string, args ...string) (stdout string, stderr string, exitCode int)
	ExecuteWithContext(ctx context.Context, command string, args ...string) (stdout string, stderr string, exitCode int)
}

type commonExecuter struct {
	// The user uid and gid under which commands are executed. Blank implies the current process user. If set, the
	// process must have root privileges or the CAP_SETUID and CAP_SETGID capabilities.
	uid     int
	gid     int
	homeDir string
}

type ExecuterOption func(e *commonExecuter)

func WithUIDAndGID(uid uint32, gid uint32) ExecuterOption {
	return func(e *commonExecuter) {
		e.uid = int(uid)
		e.gid = int(gid)
	}
}

func WithHomeDir(homeDir string) ExecuterOption {
	return func(e *commonExecuter) {
		e.homeDir = homeDir
	}
}

func NewCommonExecuter(options ...ExecuterOption) *commonExecuter {
	e := &commonExecuter{
		uid:     -1,
		gid:     -1,
		homeDir: "",
	}
	for _, o := range options {
		o(e)
	}
	return e
}

func (e *commonExecuter) Execute(command string, args ...string) (stdout string, stderr string, exitCode int) {
	return e.ExecuteWithContext(context.Background(), command, args...)
}

func (e *commonExecuter) ExecuteWithContext(ctx context.Context, command string, args ...string) (stdout string, stderr string, exitCode int) {
	cmd := e.CommandContext(ctx, command, args...)
	return e.execute(ctx, cmd)
}

func getExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

func getErrorStr(err error, stderr *bytes.Buffer) string {
	b := stderr.Bytes()
	if len(b) > 0 {
		return string(b)
	} else if err != nil {
		return err.Error()
	}

	return ""
}
