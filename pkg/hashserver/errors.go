package hashserver

import (
	"errors"
	"fmt"

	"github.com/getmockd/hashserver/pkg/page"
)

// ErrConfiguration reports an invalid server or page configuration.
var ErrConfiguration = page.ErrConfiguration

// Server errors.
var (
	ErrPortNotSet      = fmt.Errorf("%w: port is not set", ErrConfiguration)
	ErrAlreadyRunning  = errors.New("server is already running")
	ErrStartupTimeout  = errors.New("server did not start listening in time")
	ErrShutdownTimeout = errors.New("server port did not close in time")
	ErrUnknownPage     = errors.New("page is not configured")
)
