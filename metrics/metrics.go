package metrics

import (
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-miband-heartrate/live"
)

var (
  descHeartRate = prometheus.NewDesc(
    "miband_heart_rate_bpm",
    "Latest heart rate broadcast by the band, in beats per minute.",
    []string{"name"},
    nil,
  )

  descSignalStrength = prometheus.NewDesc(
    "miband_signal_strength_dbm",
    "Signal strength of the advertisement carrying the latest reading.",
    []string{"name"},
    nil,
  )

  descLastUpdateAge = prometheus.NewDesc(
    "miband_last_update_age_seconds",
    "Time elapsed since the latest accepted reading.",
    nil,
    nil,
  )

  descFresh = prometheus.NewDesc(
    "miband_reading_fresh",
    "1 if the latest reading is recent enough to be representative, 0 otherwise.",
    nil,
    nil,
  )

  descGeneration = prometheus.NewDesc(
    "miband_store_generations_total",
    "Number of readings accepted since start.",
    nil,
    nil,
  )
)

type SnapshotFunc func() live.Snapshot

type collector struct {
  SnapshotFunc
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
  ch <- descHeartRate
  ch <- descSignalStrength
  ch <- descLastUpdateAge
  ch <- descFresh
  ch <- descGeneration
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
  snap := c.SnapshotFunc()

  fresh := 0.0

  if snap.Fresh() {
    fresh = 1
  }

  ch <- prometheus.MustNewConstMetric(descLastUpdateAge, prometheus.GaugeValue, snap.Elapsed.Seconds())
  ch <- prometheus.MustNewConstMetric(descFresh, prometheus.GaugeValue, fresh)
  ch <- prometheus.MustNewConstMetric(descGeneration, prometheus.CounterValue, float64(snap.Generation))

  // nothing to report until the band has been seen at least once.
  if !snap.HasReading {
    return
  }

  heartRate := prometheus.MustNewConstMetric(
    descHeartRate,
    prometheus.GaugeValue,
    float64(snap.Value),
    snap.DeviceName,
  )

  ch <- prometheus.NewMetricWithTimestamp(snap.LastUpdate, heartRate)

  if snap.HasSignalStrength {
    signal := prometheus.MustNewConstMetric(
      descSignalStrength,
      prometheus.GaugeValue,
      float64(snap.SignalStrength),
      snap.DeviceName,
    )

    ch <- prometheus.NewMetricWithTimestamp(snap.LastUpdate, signal)
  }
}

func RegisterCollector(f SnapshotFunc, reg prometheus.Registerer) {
  c := &collector{f}

  reg.MustRegister(c)
}
