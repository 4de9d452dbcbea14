package executor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

var (
	cleanTmpDir     string
	cleanTmpDirOnce sync.Once
)

// CleanTmpDir returns a dedicated temp directory for agent CLI runs, created
// on first use. Editor sockets in the shared TMPDIR are known to crash some
// agent CLIs.
func CleanTmpDir() string {
	cleanTmpDirOnce.Do(func() {
		cleanTmpDir = filepath.Join(os.TempDir(), "lastagent-cli")
		_ = os.MkdirAll(cleanTmpDir, 0755)
	})
	return cleanTmpDir
}

// SetCleanEnv copies the current environment into cmd with TMPDIR pointed
// at CleanTmpDir.
func SetCleanEnv(cmd *exec.Cmd) {
	tmp := CleanTmpDir()
	cmd.Env = os.Environ()

	for i, env := range cmd.Env {
		if strings.HasPrefix(env, "TMPDIR=") {
			cmd.Env[i] = "TMPDIR=" + tmp
			return
		}
	}
	cmd.Env = append(cmd.Env, "TMPDIR="+tmp)
}
