// Package privilege reports whether the process may open live captures.
package privilege

// Checker reports whether the current process holds capture privileges.
type Checker interface {
	Elevated() (bool, error)
}

// System checks the privileges of the running process.
type System struct{}

// Elevated reports whether the process runs as root (or holds CAP_NET_RAW
// on linux) or, on windows, with an elevated token.
func (System) Elevated() (bool, error) {
	return elevated()
}

// Static is a Checker with a fixed answer.
type Static struct {
	Value bool
	Err   error
}

// Elevated returns the fixed answer.
func (s Static) Elevated() (bool, error) {
	return s.Value, s.Err
}

// Hint returns the remedy shown when live capture lacks privileges.
func Hint() string {
	return hint
}
