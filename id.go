package entry

import (
	"strings"
)

// PeripheralID identifies the paired actuator.
// It's the MAC address on Linux.
type PeripheralID string

// NewPeripheralID normalizes s into a PeripheralID.
func NewPeripheralID(s string) PeripheralID {
	return PeripheralID(strings.ToLower(strings.TrimSpace(s)))
}

func (id PeripheralID) String() string {
	return string(id)
}

// IsZero reports whether no peripheral is identified.
func (id PeripheralID) IsZero() bool {
	return id == ""
}

// GATT identifiers of the lock actuator.
const (
	ServiceUUID       = "1523"
	ChallengeCharUUID = "1524"
	CommandCharUUID   = "1525"
)

// GuestID is the identity the validation service reports for a guest pass.
// It is never a roster member.
const GuestID int64 = 2147483647

// TokenPrefix marks a scanned QR payload as an entry token.
const TokenPrefix = "#BE"
