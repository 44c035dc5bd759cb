//go:build !unix

package stage

import "os/exec"

// isolate на платформах без групп процессов оставляет поведение
// exec.CommandContext по умолчанию (Kill самого процесса).
func isolate(cmd *exec.Cmd) {}

// killGroup: без групп процессов потомков stage найти нельзя.
func killGroup(cmd *exec.Cmd) {}
