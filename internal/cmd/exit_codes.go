package cmd

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/spf13/pflag"

	"github.com/hireline/supportchat-cli/internal/api"
)

const (
	exitOK        = 0
	exitGeneric   = 1
	exitUsage     = 2
	exitAuth      = 3
	exitNotFound  = 4
	exitForbidden = 5
	exitServer    = 7
	exitNetwork   = 8
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401:
			return exitAuth
		case apiErr.StatusCode == 403:
			return exitForbidden
		case apiErr.StatusCode == 404:
			return exitNotFound
		case apiErr.StatusCode >= 500:
			return exitServer
		default:
			return exitGeneric
		}
	}
	if isNetworkError(err) {
		return exitNetwork
	}
	return exitGeneric
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
