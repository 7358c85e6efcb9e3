//go:build unix && !linux

package privilege

import "golang.org/x/sys/unix"

const hint = "run as root (sudo) to capture live traffic"

func elevated() (bool, error) {
	return unix.Geteuid() == 0, nil
}
