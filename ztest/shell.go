package ztest

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RunShell runs script with bash in dir.  The directories of path are
// prepended to PATH so the script finds the semq executable under test.
// Only the variables named in env are passed through from the
// environment, followed by extraEnv.
func RunShell(ctx context.Context, dir, path, script string, stdin io.Reader, env, extraEnv []string) (string, string, error) {
	// "-e -o pipefail" ensures a test will fail if any command fails
	// unexpectedly.
	cmd := exec.CommandContext(ctx, "bash", "-e", "-o", "pipefail", "-c", script)
	cmd.Dir = dir
	var dirs []string
	for _, d := range filepath.SplitList(path) {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		dirs = append(dirs, d)
	}
	dirs = append(dirs, filepath.SplitList(os.Getenv("PATH"))...)
	cmd.Env = []string{"PATH=" + strings.Join(dirs, string(filepath.ListSeparator))}
	for _, name := range env {
		if v, ok := os.LookupEnv(name); ok {
			cmd.Env = append(cmd.Env, name+"="+v)
		}
	}
	cmd.Env = append(cmd.Env, extraEnv...)
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
