//go:build !unix && !windows

package privilege

import "errors"

const hint = "live capture is not supported on this platform"

func elevated() (bool, error) {
	return false, errors.New("privilege check not supported on this platform")
}
