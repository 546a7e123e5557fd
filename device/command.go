package device

import "fmt"

// Command is an administrative control code. The set is closed; anything
// else is rejected with ErrInvalidArgument.
type Command int

const (
	// CmdOccupied returns the number of buffered bytes.
	CmdOccupied Command = iota + 1
	// CmdCapacity returns the ring capacity.
	CmdCapacity
	// CmdAvailable returns the number of free bytes.
	CmdAvailable
	// CmdDump logs capacity, occupancy and a preview of the buffered bytes,
	// and returns the occupancy.
	CmdDump
	// CmdTimerStart arms the periodic diagnostic log for the calling session
	// and returns its interval in milliseconds.
	CmdTimerStart
	// CmdTimerStop disarms it.
	CmdTimerStop
	// CmdSessions returns the number of open sessions.
	CmdSessions
)

var commandNames = map[Command]string{
	CmdOccupied:   "occupied",
	CmdCapacity:   "capacity",
	CmdAvailable:  "available",
	CmdDump:       "dump",
	CmdTimerStart: "timer-start",
	CmdTimerStop:  "timer-stop",
	CmdSessions:   "sessions",
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// String implements fmt.Stringer
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// ParseCommand resolves a command by name.
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}
