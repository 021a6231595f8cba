package device

import (
  "fmt"
  "strings"
  "time"
)

type Reading struct {
  Value uint8
  DeviceName string
  SignalStrength int
  ObservedAt time.Time

  HasDeviceName bool
  HasSignalStrength bool
}

func (r Reading) String() string {
  var fields []string

  if r.HasDeviceName {
    fields = append(fields, fmt.Sprintf("Name=%q", r.DeviceName))
  }

  if r.HasSignalStrength {
    fields = append(fields, fmt.Sprintf("RSSI=%ddBm", r.SignalStrength))
  }

  return fmt.Sprintf("Reading[Value=%d,ObservedAt=%v,%v]",
    r.Value, r.ObservedAt.Format(time.RFC3339Nano), strings.Join(fields, ","))
}
