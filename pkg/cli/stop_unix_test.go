//go:build !windows

package cli

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSleeper(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	// reap the child so signal 0 stops succeeding once it exits
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd.Process.Pid
}

func TestRunStop_Process(t *testing.T) {
	for _, force := range []bool{false, true} {
		pidPath := filepath.Join(t.TempDir(), "hashserver.pid")
		require.NoError(t, WritePIDFile(pidPath, &PIDFile{PID: startSleeper(t), Port: 8080}))

		var out bytes.Buffer
		err := runStop(context.Background(), &out, &stopFlags{pidFile: pidPath, force: force, timeout: 5 * time.Second})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "done")
		assert.NoFileExists(t, pidPath)
	}
}
