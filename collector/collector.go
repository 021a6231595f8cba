package collector

import (
  "context"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-miband-heartrate/ble"
  "github.com/robertof/go-miband-heartrate/collector/model"
  "github.com/robertof/go-miband-heartrate/device"
  "github.com/robertof/go-miband-heartrate/utils"
  "github.com/rs/zerolog/log"
  "golang.org/x/sync/errgroup"
)

const DefaultQueueSize = 16

var advertisementsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
  Name: "miband_advertisements_total",
  Help: "Advertisements received by the scanner, by decoding outcome.",
}, []string{"outcome"})

func RegisterMetrics(reg prometheus.Registerer) {
  // pre-create every label so that rates work from the first scrape.
  for _, outcome := range model.AllOutcomes {
    advertisementsCounter.WithLabelValues(string(outcome))
  }

  reg.MustRegister(advertisementsCounter)
}

// Scanner is the source of raw advertisements, usually a *ble.Handle.
type Scanner interface {
  ScanAll(ctx context.Context, onAdvertisement func(ble.Advertisement)) error
}

// Updater receives accepted readings. Only the collector's writer goroutine calls it.
type Updater interface {
  Update(r device.Reading)
}

type Collector struct {
  // Clock used to timestamp readings. Defaults to time.Now.
  Now func() time.Time
  QueueSize int

  scanner Scanner
  device device.Device
  updater Updater
}

func New(scanner Scanner, dev device.Device, store Updater) *Collector {
  return &Collector{
    Now: time.Now,
    QueueSize: DefaultQueueSize,
    scanner: scanner,
    device: dev,
    updater: store,
  }
}

// Decode runs the device filter on a single advertisement.
func (c *Collector) Decode(a device.Advertisement) model.Result {
  reading, err := c.device.ParseAdvertisement(a, c.Now())

  return model.Result{
    Advertisement: a,
    Reading: reading,
    Error: err,
  }
}

// Run scans until ctx is done or the scanner fails. Filtering happens on the scanner
// callback; accepted readings are handed to one writer goroutine, which is the only
// caller of Update. Rejected advertisements are counted and dropped.
func (c *Collector) Run(ctx context.Context) error {
  ctx, cancel := context.WithCancel(ctx)
  defer cancel()

  readings := make(chan device.Reading, c.QueueSize)

  log.Info().
    Stringer("Device", c.device).
    Msg("Starting advertisement collection")

  var eg errgroup.Group

  eg.Go(func() error {
    for {
      select {
      case <-ctx.Done():
        // store what the scanner queued before it stopped.
        for {
          select {
          case r := <-readings:
            c.store(r)
          default:
            return nil
          }
        }
      case r := <-readings:
        c.store(r)
      }
    }
  })

  err := c.scanner.ScanAll(ctx, func(a ble.Advertisement) {
    // the BLE lib could send an advertisement even after `Scan()` returns. do not waste
    // time decoding data if we're done.
    select {
    case <-ctx.Done():
      return
    default:
    }

    result := c.Decode(device.FromBLE(a))
    advertisementsCounter.WithLabelValues(string(result.Outcome())).Inc()

    if !result.Accepted() {
      log.Trace().
        Stringer("Advertisement", result.Advertisement).
        Stringer("Result", result).
        Msg("collector: dropped advertisement")

      return
    }

    select {
    case <-ctx.Done():
    case readings <- result.Reading:
    }
  })

  cancel()
  _ = eg.Wait()

  // swallow cancellations, they are how the collector is stopped.
  if utils.ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded) {
    log.Info().Msg("Advertisement collection stopped")
    return nil
  }

  return err
}

func (c *Collector) store(r device.Reading) {
  c.updater.Update(r)

  log.Debug().
    Stringer("Reading", r).
    Msg("Stored new reading")
}
