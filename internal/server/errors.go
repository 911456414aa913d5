package server

import (
	"errors"
	"fmt"
)

var ErrServer = errors.New("server error")

// Wraps an underlying failure with the package sentinel.
func errSrv(err error) error {
	return fmt.Errorf("%w: %w", ErrServer, err)
}
