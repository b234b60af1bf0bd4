// Package command encodes actuator commands and drives the command
// characteristic, including the self-closing unlock pulse.
package command

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Opcode is an actuator operation.
type Opcode int

const (
	Close Opcode = iota
	Open
	ReadChallenge
	RespondChallenge
)

func (o Opcode) String() string {
	switch o {
	case Close:
		return "Close"
	case Open:
		return "Open"
	case ReadChallenge:
		return "ReadChallenge"
	case RespondChallenge:
		return "RespondChallenge"
	}
	return fmt.Sprintf("Opcode(%d)", int(o))
}

// Command is one write to the command characteristic.
type Command struct {
	Opcode Opcode
	Params []byte
}

// Marshal encodes c as "<opcode>|<params>".
func (c Command) Marshal() []byte {
	b := make([]byte, 0, 4+len(c.Params))
	b = strconv.AppendInt(b, int64(c.Opcode), 10)
	b = append(b, '|')
	return append(b, c.Params...)
}

// Parse decodes a payload produced by Marshal.
func Parse(b []byte) (Command, error) {
	i := bytes.IndexByte(b, '|')
	if i <= 0 {
		return Command{}, errors.Errorf("malformed command %q", b)
	}

	op, err := strconv.Atoi(string(b[:i]))
	if err != nil {
		return Command{}, errors.Wrapf(err, "malformed opcode %q", b[:i])
	}

	return Command{Opcode: Opcode(op), Params: append([]byte(nil), b[i+1:]...)}, nil
}
