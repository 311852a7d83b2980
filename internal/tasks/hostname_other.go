//go:build !linux

package tasks

import "os"

func kernelHostname() (string, error) {
	return os.Hostname()
}

func isRoot() bool {
	return os.Geteuid() == 0
}
