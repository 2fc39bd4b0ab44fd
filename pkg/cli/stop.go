package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ErrNotRunning is returned by stop when no live process is recorded.
var ErrNotRunning = errors.New("hashserver is not running")

// errStillRunning is the retry condition while waiting for an exit.
var errStillRunning = errors.New("process is still running")

// stopPollInterval is the delay between liveness checks.
const stopPollInterval = 100 * time.Millisecond

type stopFlags struct {
	pidFile string
	force   bool
	timeout time.Duration
}

var stopFlagVals stopFlags

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a server started with serve --pid-file",
	Long: `Signal the process recorded in a PID file and wait for it to exit.

SIGTERM lets the server kill its workers and release the port; --force sends
SIGKILL instead.`,
	Example: `  hashserver serve --pages pages.yaml --port 8080 --pid-file /tmp/hashserver.pid &
  hashserver stop --pid-file /tmp/hashserver.pid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(cmd.Context(), cmd.OutOrStdout(), &stopFlagVals)
	},
}

func initStopCmd() {
	rootCmd.AddCommand(stopCmd)

	f := &stopFlagVals
	stopCmd.Flags().StringVar(&f.pidFile, "pid-file", "", "Path to the PID file written by serve")
	stopCmd.Flags().BoolVarP(&f.force, "force", "f", false, "Send SIGKILL instead of SIGTERM")
	stopCmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "How long to wait for the process to exit")
	_ = stopCmd.MarkFlagRequired("pid-file")
}

func runStop(ctx context.Context, out io.Writer, f *stopFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := ReadPIDFile(f.pidFile)
	if err != nil {
		return err
	}
	if !info.IsRunning() {
		_ = RemovePIDFile(f.pidFile)
		return fmt.Errorf("%w (stale PID file removed)", ErrNotRunning)
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", info.PID, err)
	}

	sig, sigName := signalTerm, signalTermName()
	if f.force {
		sig, sigName = signalKill, signalKillName()
	}

	fmt.Fprintf(out, "Stopping hashserver at %s (PID %d) with %s... ", info.URL(), info.PID, sigName)
	if err := process.Signal(sig); err != nil {
		fmt.Fprintln(out, color.RedString("failed"))
		return fmt.Errorf("failed to send signal: %w", err)
	}

	retries := uint64(f.timeout / stopPollInterval)
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(stopPollInterval), retries), ctx)
	err = backoff.Retry(func() error {
		if checkProcessRunning(info.PID) {
			return errStillRunning
		}
		return nil
	}, b)
	if err != nil {
		fmt.Fprintln(out, color.YellowString("timeout"))
		return fmt.Errorf("process %d did not stop within %s; try --force", info.PID, f.timeout)
	}

	fmt.Fprintln(out, color.GreenString("done"))
	return RemovePIDFile(f.pidFile)
}
