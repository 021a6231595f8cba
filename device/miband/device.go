package miband

import (
  "fmt"
  "net"

  "github.com/robertof/go-miband-heartrate/device"
  "github.com/rs/zerolog/log"
)

const (
  // Company identifier assigned to Anhui Huami.
  DefaultCompanyID uint16 = 0x0157
  DefaultName = "Mi Smart Band 4"
  // Offset of the heart rate byte inside the manufacturer payload.
  DefaultValueOffset = 3

  specFieldOffset = "offset"
)

type Config struct {
  CompanyID uint16
  Name string
  ValueOffset int
  Addr net.HardwareAddr
}

var DefaultConfig = Config{
  CompanyID: DefaultCompanyID,
  Name: DefaultName,
  ValueOffset: DefaultValueOffset,
}

type Device struct {
  cfg Config
}

func New(cfg Config) (*Device, error) {
  if cfg.Name == "" {
    return nil, fmt.Errorf("miband: device name is required")
  }

  if cfg.ValueOffset < 0 {
    return nil, fmt.Errorf("miband: invalid value offset %d", cfg.ValueOffset)
  }

  return &Device{cfg: cfg}, nil
}

func (d *Device) Name() string {
  return d.cfg.Name
}

func (d *Device) CompanyID() uint16 {
  return d.cfg.CompanyID
}

func (d *Device) Addr() net.HardwareAddr {
  return d.cfg.Addr
}

func (d *Device) String() string {
  addr := "any"

  if d.cfg.Addr != nil {
    addr = d.cfg.Addr.String()
  }

  return fmt.Sprintf("miband[name=%q, company=%#04x, offset=%d, addr=%v]",
    d.cfg.Name, d.cfg.CompanyID, d.cfg.ValueOffset, addr)
}

type Factory struct{}

func (f *Factory) FromSpec(spec device.DeviceSpec) (device.Device, error) {
  cfg := DefaultConfig

  if name := spec.Name(); name != "" {
    cfg.Name = name
  }

  var err error

  if cfg.CompanyID, err = spec.Uint16(device.DeviceSpecFieldCompany, DefaultCompanyID); err != nil {
    return nil, err
  }

  if cfg.ValueOffset, err = spec.Int(specFieldOffset, DefaultValueOffset); err != nil {
    return nil, err
  }

  if addr := spec.Addr(); addr != "" {
    if cfg.Addr, err = net.ParseMAC(addr); err != nil {
      return nil, fmt.Errorf("invalid addr: %w", err)
    }
  }

  d, err := New(cfg)

  if err != nil {
    return nil, err
  }

  log.Debug().Stringer("Device", d).Msg("miband: configured target device")

  return d, nil
}

func (f *Factory) Help() string {
  return `Supported parameters:
name (string): Advertised name of the band, matched exactly (default "Mi Smart Band 4")
company (uint16): Manufacturer company identifier, decimal or 0x-prefixed (default 0x0157)
offset (int): Offset of the heart rate byte inside the manufacturer payload (default 3)
addr (string): MAC address of the band. When set, the adapter only reports advertisements from it`
}
