//go:build !unix

package filelock

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("file locking is not supported on this platform")

func tryLock(*os.File) (bool, error) {
	return false, errUnsupported
}

func unlock(*os.File) error {
	return errUnsupported
}
