package device

import (
  "errors"
  "net"
  "time"
)

var (
  // The record does not come from the configured target.
  ErrFilteredOut = errors.New("filtered out")
  // The record comes from the target but cannot be decoded.
  ErrInvalidData = errors.New("invalid data")
  // The record decodes to the "no measurement this cycle" sentinel.
  ErrNoReading = errors.New("no reading available")
)

// Device decides which advertisements belong to it and decodes them into readings.
// Implementations must be pure: no state, no I/O.
type Device interface {
  Name() string
  CompanyID() uint16
  // Addr is the MAC address used to allow-list the device on the adapter, nil when unset.
  Addr() net.HardwareAddr
  ParseAdvertisement(a Advertisement, now time.Time) (Reading, error)
  String() string
}

type Factory interface {
  FromSpec(spec DeviceSpec) (Device, error)
}

type FactoryDocs interface {
  Help() string
}
