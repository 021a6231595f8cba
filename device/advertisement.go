package device

import (
  "encoding/binary"
  "fmt"

  "github.com/go-ble/ble"
)

// ManufacturerData is a manufacturer-specific data block with the company identifier
// already split off the payload.
type ManufacturerData struct {
  CompanyID uint16
  Payload []byte
}

// Advertisement is a broadcast record as seen by the filter. Every field may be absent.
type Advertisement struct {
  Addr string
  ManufacturerData *ManufacturerData
  DeviceName string
  SignalStrength int

  HasDeviceName bool
  HasSignalStrength bool
}

func (a Advertisement) String() string {
  md := "none"

  if a.ManufacturerData != nil {
    md = fmt.Sprintf("{company=%#04x, payload=%x}", a.ManufacturerData.CompanyID, a.ManufacturerData.Payload)
  }

  return fmt.Sprintf("advertisement[addr=%v, name=%q, rssi=%d, manufacturerData=%v]",
    a.Addr, a.DeviceName, a.SignalStrength, md)
}

// FromBLE converts a go-ble advertisement. The first two bytes of the raw manufacturer
// data are the company identifier (little endian); shorter blobs count as absent.
func FromBLE(a ble.Advertisement) (out Advertisement) {
  if addr := a.Addr(); addr != nil {
    out.Addr = addr.String()
  }

  if name := a.LocalName(); name != "" {
    out.DeviceName = name
    out.HasDeviceName = true
  }

  // go-ble always reports the RSSI of the received packet.
  out.SignalStrength = a.RSSI()
  out.HasSignalStrength = true

  if raw := a.ManufacturerData(); len(raw) >= 2 {
    payload := make([]byte, len(raw) - 2)
    copy(payload, raw[2:])

    out.ManufacturerData = &ManufacturerData{
      CompanyID: binary.LittleEndian.Uint16(raw),
      Payload: payload,
    }
  }

  return out
}
