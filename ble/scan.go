package ble

import (
  "context"
  "errors"
  "fmt"

  "github.com/go-ble/ble"
)

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// ScanAll scans until ctx is done and hands every advertisement to onAdvertisement,
// duplicates included: the band re-broadcasts the same address with a new heart rate
// on every cycle. The callback runs on the HCI event goroutine and must not block for
// long.
func (h *Handle) ScanAll(ctx context.Context, onAdvertisement func(Advertisement)) error {
  return scanError(h.dev.Scan(ctx, true, onAdvertisement))
}

// Scan only returns on its own when the adapter rejects the scan commands or goes
// away, everything except a context error comes from the adapter.
func scanError(err error) error {
  if err == nil {
    return nil
  }

  if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
    return fmt.Errorf("scan stopped: %w", err)
  }

  return fmt.Errorf("scan stopped: %w: %w", ErrAdapterUnavailable, err)
}
