//go:build windows

package cli

import (
	"os"

	"golang.org/x/sys/windows"
)

// Windows has no SIGTERM; serve treats os.Interrupt as the graceful signal.
var (
	signalTerm = os.Interrupt
	signalKill = os.Kill
)

func signalTermName() string { return "interrupt" }

func signalKillName() string { return "kill" }

// checkProcessRunning opens pid and checks whether it has exited.
func checkProcessRunning(pid int) bool {
	handle, err := windows.OpenProcess(windows.SYNCHRONIZE|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = windows.CloseHandle(handle) }()

	event, err := windows.WaitForSingleObject(handle, 0)
	if err != nil {
		return false
	}
	return event == uint32(windows.WAIT_TIMEOUT)
}
