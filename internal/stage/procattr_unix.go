//go:build unix

package stage

import (
	"os/exec"
	"syscall"
)

// isolate запускает процесс в собственной группе процессов: по отмене
// SIGKILL получают stage и все его дочерние процессы.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// killGroup добивает процессы, оставшиеся в группе stage.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
