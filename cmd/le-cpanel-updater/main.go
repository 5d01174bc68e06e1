package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kukawski/le-cpanel-updater/internal/core"
	"github.com/kukawski/le-cpanel-updater/internal/provider"
)

// 退出码
const (
	exitOK         = 0
	exitError      = 1
	exitRenewalDue = 2
	exitOrder      = 3
	exitInstall    = 4
)

var errRenewalDue = errors.New("certificate renewal is due")

func main() {
	err := newRootCmd().Execute()
	if err != nil && !errors.Is(err, errRenewalDue) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var oe *core.OrderError
	var ie *provider.InstallError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRenewalDue):
		return exitRenewalDue
	case errors.As(err, &oe):
		return exitOrder
	case errors.As(err, &ie):
		return exitInstall
	default:
		return exitError
	}
}
