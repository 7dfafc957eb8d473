package server

import "fmt"

// ConnState is the lifecycle position of one served connection.
type ConnState int

const (
	StateIdle ConnState = iota
	StateReceiving
	StateResolved
	StateResponded
	StateClosed
)

var connStateNames = [...]string{
	StateIdle:      "idle",
	StateReceiving: "receiving",
	StateResolved:  "resolved",
	StateResponded: "responded",
	StateClosed:    "closed",
}

func (s ConnState) String() string {
	if s >= 0 && int(s) < len(connStateNames) {
		return connStateNames[s]
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}
