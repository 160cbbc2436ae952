//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals are the signals that stop the server gracefully.
// SIGTERM covers systemd and kubernetes; os.Interrupt covers Ctrl+C.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
