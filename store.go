package entry

// Store is the persistent key/value store backing bonds, the roster,
// settings and the entry log. Values are opaque bytes; callers encode
// scalars as strings and collections as JSON.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) ([]byte, bool, error)

	// Set stores value under key.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// Persisted keys.
const (
	KeyPeripheralID = "peripheral_id"
	KeyCompanyID    = "companyId"
	KeyMembers      = "members"
	KeyRoomName     = "roomName"
	KeyAllowGuest   = "allowGuest"
	KeyLogs         = "logs"
)
