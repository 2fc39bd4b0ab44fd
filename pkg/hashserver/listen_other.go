//go:build !unix

package hashserver

import "syscall"

func reuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
