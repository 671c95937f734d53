// Package pppd spawns and supervises the local pppd(8) binary that
// terminates the PPP-over-SSL tunnel, allocating the PTY pair it attaches
// to and relaying bytes between that PTY and the TLS socket is left to
// lib/relay.
package pppd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/kj54321/f5vpn-login/lib/privilege"
)

// Path to the pppd binary, overridable in tests.
var Path = "/usr/sbin/pppd"

// SpawnOptions configures the pppd argument list (spec.md §4.E).
type SpawnOptions struct {
	// OverrideGateway selects `defaultroute` vs `nodefaultroute`.
	OverrideGateway bool
	// ServiceID is passed as the macOS-only `serviceid` argument.
	ServiceID string
	GOOS      string
}

// Args builds the exact pppd argument list for opts, matching the
// original fork/exec block byte for byte.
func (opts SpawnOptions) Args() []string {
	args := []string{
		"logfd", "4", "noauth", "nodetach",
		"crtscts", "passive", "ipcp-accept-local", "ipcp-accept-remote",
		"nodeflate", "novj", "local", "+ipv6",
	}
	if opts.OverrideGateway {
		args = append(args, "defaultroute")
	} else {
		args = append(args, "nodefaultroute")
	}
	if opts.GOOS == "darwin" {
		args = append(args, "serviceid", opts.ServiceID)
	}
	return args
}

// Supervisor tracks a spawned pppd child process.
type Supervisor struct {
	cmd *exec.Cmd
	log *logrus.Entry
}

// Spawn allocates a PTY pair and a log pipe, then execs pppd against the
// PTY slave with fd 4 wired to the log pipe's write end and the process
// running as real root (spec.md §4.E). The returned *os.File values are
// the PTY master and the log pipe's read end, both owned by the caller.
func Spawn(ctx context.Context, opts SpawnOptions) (*Supervisor, *os.File, *os.File, error) {
	cmd := exec.CommandContext(ctx, Path, opts.Args()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:     true,
		Credential: &syscall.Credential{Uid: 0, Gid: 0},
	}

	ptyMaster, ptySlave, err := pty.Open()
	if err != nil {
		return nil, nil, nil, trace.Wrap(err, "allocating pty")
	}
	defer ptySlave.Close()

	logRead, logWrite, err := os.Pipe()
	if err != nil {
		ptyMaster.Close()
		return nil, nil, nil, trace.Wrap(err, "allocating log pipe")
	}
	defer logWrite.Close()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		ptyMaster.Close()
		logRead.Close()
		return nil, nil, nil, trace.Wrap(err)
	}
	defer devNull.Close()

	cmd.Stdin = ptySlave
	cmd.Stdout = ptySlave
	cmd.Stderr = ptySlave
	// ExtraFiles[i] becomes fd 3+i in the child, so index 1 lands logWrite
	// on fd 4, matching the "logfd 4" argument pppd is given.
	cmd.ExtraFiles = []*os.File{devNull, logWrite}

	log := logrus.WithField("component", "pppd")
	if err := privilege.Elevated(cmd.Start); err != nil {
		ptyMaster.Close()
		logRead.Close()
		return nil, nil, nil, trace.Wrap(err, "starting pppd")
	}
	log.WithField("pid", cmd.Process.Pid).Info("pppd started")

	return &Supervisor{cmd: cmd, log: log}, ptyMaster, logRead, nil
}

// Shutdown checks whether pppd has already exited (WNOHANG-equivalent via
// Process.Signal(syscall.Signal(0))); if not, it sends SIGTERM and blocks
// for exit (spec.md §4.E teardown). pppd runs as real root while the
// caller has long since dropped its effective uid, so the signal itself
// has to happen inside privilege.Elevated.
func (s *Supervisor) Shutdown(ctx context.Context) (int, error) {
	if alreadyExited(s.cmd) {
		return exitCode(s.cmd), nil
	}

	signalErr := privilege.Elevated(func() error {
		return s.cmd.Process.Signal(syscall.SIGTERM)
	})
	if signalErr != nil && !alreadyExited(s.cmd) {
		s.log.WithError(signalErr).Warn("failed to signal pppd")
	}

	// A signal-terminated child reports its Wait() outcome as a non-nil
	// *exec.ExitError; that's the expected teardown path here, not a
	// failure, so only ctx expiring counts as an error.
	done := make(chan struct{})
	go func() {
		s.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		return exitCode(s.cmd), nil
	case <-ctx.Done():
		return -1, trace.Wrap(ctx.Err())
	}
}

func alreadyExited(cmd *exec.Cmd) bool {
	if cmd.ProcessState != nil {
		return true
	}
	// pppd runs as root and this probe is sent unelevated, so EPERM means
	// the process is still there.
	err := cmd.Process.Signal(syscall.Signal(0))
	return err != nil && !errors.Is(err, syscall.EPERM)
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// ServiceID derives the macOS serviceid argument from the tunnel host,
// e.g. "f5vpn-vpn.example.com" (spec.md §4.E).
func ServiceID(tunnelHost string) string {
	return fmt.Sprintf("f5vpn-%s", tunnelHost)
}
