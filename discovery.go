package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/robertof/go-miband-heartrate/ble"
	"github.com/robertof/go-miband-heartrate/device"
)

type discoveredDevice struct {
  addr string
  name string
  rssi int
  seen int
  companies []string
}

// discoveredDevices merges advertisements per address. The go-ble callback may still
// fire after `ScanAll()` returns, so every access goes through the lock.
type discoveredDevices struct {
  mu sync.Mutex
  byAddr map[string]*discoveredDevice
  companies map[string]map[string]bool
}

func newDiscoveredDevices() *discoveredDevices {
  return &discoveredDevices{
    byAddr: make(map[string]*discoveredDevice),
    companies: make(map[string]map[string]bool),
  }
}

func companyKey(id uint16) string {
  return fmt.Sprintf("0x%04x", id)
}

func (d *discoveredDevices) observe(a device.Advertisement) {
  d.mu.Lock()
  defer d.mu.Unlock()

  info, ok := d.byAddr[a.Addr]

  if !ok {
    info = &discoveredDevice{addr: a.Addr}
    d.byAddr[a.Addr] = info
    d.companies[a.Addr] = make(map[string]bool)
  }

  // merge
  if info.name == "" && a.HasDeviceName {
    info.name = a.DeviceName
  }

  info.rssi = a.SignalStrength
  info.seen++

  var payload []byte

  if a.ManufacturerData != nil {
    d.companies[a.Addr][companyKey(a.ManufacturerData.CompanyID)] = true
    payload = a.ManufacturerData.Payload
  }

  log.Debug().
    Str("Addr", a.Addr).
    Str("Name", a.DeviceName).
    Int("RSSI", a.SignalStrength).
    Strs("CompanyIDs", maps.Keys(d.companies[a.Addr])).
    Hex("Payload", payload).
    Msg("Received device advertisement")
}

// list returns a copy of what was seen so far, sorted by address.
func (d *discoveredDevices) list() []discoveredDevice {
  d.mu.Lock()
  defer d.mu.Unlock()

  out := make([]discoveredDevice, 0, len(d.byAddr))

  for addr, info := range d.byAddr {
    dev := *info
    dev.companies = maps.Keys(d.companies[addr])
    sort.Strings(dev.companies)

    out = append(out, dev)
  }

  sort.Slice(out, func(i, j int) bool { return out[i].addr < out[j].addr })

  return out
}

func doDeviceDiscovery(cfg config) {
  log.Info().
    Dur("DurationSec", cfg.DiscoveryDuration).
    Msg("Starting in device discovery mode - collecting advertisements...")

  handle, err := ble.Init(cfg.BluetoothDeviceId, ble.FlagScanTypeActive)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  ctx := ble.WrapContextWithSigHandler(
    context.WithTimeout(
      context.Background(),
      cfg.DiscoveryDuration,
    ),
  )

  devices := newDiscoveredDevices()

  err = handle.ScanAll(ctx, func(raw ble.Advertisement) {
    devices.observe(device.FromBLE(raw))
  })

  handle.Stop()

  if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
    log.Error().Err(err).Msg("Failed to initiate scan")
    os.Exit(1)
  }

  found := devices.list()
  bandCompany := companyKey(cfg.Device.CompanyID())

  log.Info().Int("Found", len(found)).Msg("Finished device discovery")

  for _, dev := range found {
    log.Info().
      Str("Addr", dev.addr).
      Str("Name", dev.name).
      Int("LastRSSI", dev.rssi).
      Int("Advertisements", dev.seen).
      Strs("CompanyIDs", dev.companies).
      Bool("LooksLikeBand", slices.Contains(dev.companies, bandCompany)).
      Msg("Found device")
  }
}
