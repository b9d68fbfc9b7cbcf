package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Predefined errors returned (wrapped) by every backend.
var (
	// ErrUnavailable indicates the store could not be opened or reached.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrAuthentication indicates the remote store rejected the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTimeout indicates the operation did not complete before its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrOperation indicates any other storage failure.
	ErrOperation = errors.New("storage operation failed")
)

// Wrap annotates err with op and the given sentinel so callers can test it with
// errors.Is while the driver error stays reachable through errors.As.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// Classify maps a driver error onto one of the package sentinels.
//
// isAuth lets each backend recognize its own credential rejection codes; it may be nil.
// Deadline expiry wins over everything else, then authentication, then connectivity.
func Classify(op string, err error, isAuth func(error) bool) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrTimeout), errors.Is(err, ErrOperation):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return Wrap(op, ErrTimeout, err)
	case isAuth != nil && isAuth(err):
		return Wrap(op, ErrAuthentication, err)
	case IsConnectivity(err):
		return Wrap(op, ErrUnavailable, err)
	default:
		return Wrap(op, ErrOperation, err)
	}
}

// IsConnectivity reports whether err looks like a network or filesystem
// failure to reach the store.
func IsConnectivity(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.ENOSPC)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
