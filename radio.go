package entry

import (
	"context"
)

// Discovery is a peripheral seen while scanning.
type Discovery struct {
	ID   PeripheralID
	Name string
	RSSI int
}

// DiscoveryHandler handles discoveries.
type DiscoveryHandler func(d Discovery)

// Radio is the host BLE controller.
type Radio interface {
	// Scan reports peripherals advertising service until ctx is done.
	// It returns nil when ctx ends the scan.
	Scan(ctx context.Context, service string, h DiscoveryHandler) error

	// Dial connects to the peripheral identified by id.
	Dial(ctx context.Context, id PeripheralID) (Link, error)
}

// Link implements a GATT connection to a peripheral.
type Link interface {
	// ID returns the remote peripheral's identity.
	ID() PeripheralID

	// DiscoverServices retrieves the remote GATT profile. The characteristic
	// accessors below require a successful discovery.
	DiscoverServices(ctx context.Context) error

	// ReadCharacteristic reads the value of char in service.
	ReadCharacteristic(ctx context.Context, service, char string) ([]byte, error)

	// WriteCharacteristic writes value to char in service.
	WriteCharacteristic(ctx context.Context, service, char string, value []byte) error

	// Disconnect tears the connection down.
	Disconnect() error

	// Disconnected returns a receiving channel, which is closed when the connection disconnects.
	Disconnected() <-chan struct{}
}
