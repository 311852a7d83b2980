//go:build linux

package tasks

import "golang.org/x/sys/unix"

// kernelHostname returns the node name the kernel reports.
func kernelHostname() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Nodename[:]), nil
}

func isRoot() bool {
	return unix.Geteuid() == 0
}
