// Package privilege implements the scoped "become root, restore on exit"
// primitive spec.md §4.D/§9 requires around every route/DNS mutation and
// around PPPD shutdown. The process is expected to start with effective
// uid == real uid (dropped from a setuid binary by the orchestrator), and
// every privileged operation must restore that drop on every exit path,
// including panics.
package privilege

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/gravitational/trace"
	"golang.org/x/sys/unix"
)

// Elevated raises the effective uid to 0, runs fn, and restores the
// caller's real uid as the effective uid again before returning --
// including when fn panics.
func Elevated(fn func() error) (err error) {
	realUID := unix.Getuid()
	if seteuidErr := unix.Seteuid(0); seteuidErr != nil {
		return trace.Wrap(seteuidErr, "elevating privileges")
	}
	defer func() {
		if restoreErr := unix.Seteuid(realUID); restoreErr != nil && err == nil {
			err = trace.Wrap(restoreErr, "restoring privileges")
		}
	}()
	return fn()
}

// SubprocessFailed reports a non-zero exit from a command run via RunAsRoot.
type SubprocessFailed struct {
	Argv   []string
	Err    error
	Stderr string
}

func (e *SubprocessFailed) Error() string {
	return "command " + shellJoin(e.Argv) + " failed: " + e.Err.Error() + ": " + e.Stderr
}
func (e *SubprocessFailed) Unwrap() error { return e.Err }

// RunAsRoot execs argv[0] with argv as arguments, effective and real uid
// set to 0 in the child (matching the original's run_as_root), optionally
// feeding stdin. It checks the exit status and returns SubprocessFailed on
// non-zero.
func RunAsRoot(ctx context.Context, argv []string, stdin []byte) error {
	return Elevated(func() error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if stdin != nil {
			cmd.Stdin = bytes.NewReader(stdin)
		}
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.SysProcAttr = rootSysProcAttr()
		if err := cmd.Run(); err != nil {
			return trace.Wrap(&SubprocessFailed{Argv: argv, Err: err, Stderr: stderr.String()})
		}
		return nil
	})
}

// RunAsRootTolerant is the teardown variant of RunAsRoot: it runs the
// command but swallows any failure, matching spec.md §3 invariant 4/§7's
// requirement that teardown paths be idempotent and never block on a
// partially-undone prior state.
func RunAsRootTolerant(ctx context.Context, argv []string, stdin []byte) {
	_ = RunAsRoot(ctx, argv, stdin)
}

func shellJoin(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
