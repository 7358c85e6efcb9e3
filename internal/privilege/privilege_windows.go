package privilege

import "golang.org/x/sys/windows"

const hint = "run from an elevated (Administrator) prompt with Npcap installed"

func elevated() (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}
