package device

import (
  "fmt"
  "strconv"
  "strings"

  "github.com/rs/zerolog/log"
)

type DeviceSpec map[string]string

const (
  DeviceSpecFieldName = "name"
  DeviceSpecFieldCompany = "company"
  DeviceSpecFieldAddress = "addr"
)

func NewDeviceSpec(s string) DeviceSpec {
  spec := DeviceSpec{}
  entries := strings.Split(s, ",")

  for _, entry := range entries {
    parts := strings.SplitN(entry, "=", 2)

    if len(parts) != 2 {
      log.Warn().Str("Entry", entry).Msg("Skipping invalid device spec entry")
      continue
    }

    spec[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
  }

  return spec
}

func (ds DeviceSpec) Name() string {
  return ds[DeviceSpecFieldName]
}

func (ds DeviceSpec) Addr() string {
  return ds[DeviceSpecFieldAddress]
}

// Uint16 parses a field which may be written in decimal or with a 0x prefix.
// Returns def when the field is missing.
func (ds DeviceSpec) Uint16(field string, def uint16) (uint16, error) {
  v, ok := ds[field]

  if !ok || v == "" {
    return def, nil
  }

  n, err := strconv.ParseUint(v, 0, 16)

  if err != nil {
    return def, fmt.Errorf("invalid %v %q: %w", field, v, err)
  }

  return uint16(n), nil
}

func (ds DeviceSpec) Int(field string, def int) (int, error) {
  v, ok := ds[field]

  if !ok || v == "" {
    return def, nil
  }

  n, err := strconv.Atoi(v)

  if err != nil {
    return def, fmt.Errorf("invalid %v %q: %w", field, v, err)
  }

  return n, nil
}
