package miband

import (
  "time"

  "github.com/pkg/errors"
  "github.com/robertof/go-miband-heartrate/device"
)

// The band broadcasts 0xff while it has no heart rate measurement (e.g. off-wrist).
const noReadingSentinel = 0xff

// ParseAdvertisement accepts a record only when it carries manufacturer data from the
// configured company, the exact configured name and a payload long enough to hold the
// heart rate byte. Rejections are reported via errors wrapping device.ErrFilteredOut,
// device.ErrInvalidData or device.ErrNoReading.
func (d *Device) ParseAdvertisement(a device.Advertisement, now time.Time) (reading device.Reading, err error) {
  md := a.ManufacturerData

  if md == nil {
    return reading, errors.Wrap(device.ErrInvalidData, "miband: missing manufacturer data")
  }

  if md.CompanyID != d.cfg.CompanyID {
    return reading, errors.Wrapf(device.ErrFilteredOut, "miband: unexpected company id %#04x", md.CompanyID)
  }

  if !a.HasDeviceName || a.DeviceName != d.cfg.Name {
    return reading, errors.Wrapf(device.ErrFilteredOut, "miband: unexpected device name %q", a.DeviceName)
  }

  if len(md.Payload) <= d.cfg.ValueOffset {
    return reading, errors.Wrapf(device.ErrInvalidData,
      "miband: payload too short (%d bytes), want > %d", len(md.Payload), d.cfg.ValueOffset)
  }

  value := md.Payload[d.cfg.ValueOffset]

  if value == noReadingSentinel {
    return reading, errors.Wrap(device.ErrNoReading, "miband: band reported no measurement")
  }

  reading.Value = value
  reading.DeviceName = a.DeviceName
  reading.HasDeviceName = true
  reading.SignalStrength = a.SignalStrength
  reading.HasSignalStrength = a.HasSignalStrength
  reading.ObservedAt = now

  return reading, nil
}
