//go:build unix

package privilege

import "syscall"

// rootSysProcAttr forces both the real and effective uid/gid of the child
// process to root, independent of whatever uid the parent is currently
// running under (spec.md §4.D: "child processes that must run privileged
// set both effective and real uid to 0 before exec").
func rootSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: 0, Gid: 0},
	}
}
