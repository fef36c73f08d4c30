package proxy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/criticalup/criticalup/internal/errs"
)

// RunOptions configures a dispatch execution.
type RunOptions struct {
	Cwd          string
	ManifestPath string // optional --project override; empty means discover from Cwd
	Name         string
	Args         []string
	Strict       bool // when true, PATH is replaced rather than prepended (spec §4.7 step 5)
	Env          []string
}

// Run performs the full dispatch (discover, resolve, locate, execute),
// spawning the located executable with the caller's arguments and an
// environment augmented per spec §4.7 step 5. Stdio is inherited from the
// current process, matching the teacher's activate.go shell-out pattern.
func (d *Dispatcher) Run(ctx context.Context, opts RunOptions) (int, error) {
	path, err := d.WhichFrom(opts.Cwd, opts.ManifestPath, opts.Name)
	if err != nil {
		return -1, err
	}

	binDir := filepath.Dir(path)
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = augmentPath(env, binDir, opts.Strict)

	cmd := exec.CommandContext(ctx, path, opts.Args...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = opts.Cwd

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, errs.Wrap(errs.Dispatch, "binary-not-found", "execute "+path, err)
	}
	return 0, nil
}

// augmentPath prepends binDir to the PATH entry in env, or replaces PATH
// entirely with just binDir in strict mode.
func augmentPath(env []string, binDir string, strict bool) []string {
	const pathKey = "PATH="
	sep := string(os.PathListSeparator)

	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if len(kv) >= len(pathKey) && kv[:len(pathKey)] == pathKey {
			found = true
			if strict {
				out = append(out, pathKey+binDir)
			} else {
				out = append(out, pathKey+binDir+sep+kv[len(pathKey):])
			}
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, pathKey+binDir)
	}
	return out
}
