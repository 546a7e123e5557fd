package device

import "fmt"

// Mode is the access mode a session is opened with. A session is either a
// reader or a writer, never both.
type Mode int

const (
	// ReadOnly sessions may Read and Peek.
	ReadOnly Mode = iota + 1
	// WriteOnly sessions may Write.
	WriteOnly
)

// Valid reports whether m is ReadOnly or WriteOnly.
func (m Mode) Valid() bool {
	return m == ReadOnly || m == WriteOnly
}

// String implements fmt.Stringer
func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "r", "read", "read-only" and the write equivalents.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r", "read", "read-only", "readonly":
		return ReadOnly, nil
	case "w", "write", "write-only", "writeonly":
		return WriteOnly, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
