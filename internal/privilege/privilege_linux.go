package privilege

import "golang.org/x/sys/unix"

const (
	hint      = "run as root or grant CAP_NET_RAW (setcap cap_net_raw,cap_net_admin=eip <binary>)"
	capNetRaw = 13
)

func elevated() (bool, error) {
	if unix.Geteuid() == 0 {
		return true, nil
	}

	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return false, err
	}
	return data[capNetRaw/32].Effective&(1<<(capNetRaw%32)) != 0, nil
}
