package vwbuild

import (
	"os/exec"
	"strings"
)

// fakeRunner simulates a host: which tools exist, what uid we run as, and
// what each invocation does. Commands are recorded instead of executed.
type fakeRunner struct {
	euid    int
	missing map[string]bool
	calls   []string
	onRun   func(cmd *exec.Cmd) error
}

func (f *fakeRunner) Run(cmd *exec.Cmd) error {
	f.calls = append(f.calls, strings.Join(cmd.Args, " "))
	if f.onRun != nil {
		return f.onRun(cmd)
	}
	return nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", exec.ErrNotFound
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Euid() int {
	return f.euid
}

func (f *fakeRunner) calledWith(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
