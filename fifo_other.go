//go:build !unix

package main

import "errors"

func mkfifo(path string, mode uint32) error {
	return errors.New("named pipes are not supported on this platform")
}
