package camlink

import "errors"

var (
	errAlreadyRunning = errors.New("Pipeline already running")
	errNotRunning     = errors.New("Pipeline not running")
)
