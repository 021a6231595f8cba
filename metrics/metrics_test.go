package metrics_test

import (
  "strings"
  "testing"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  dto "github.com/prometheus/client_model/go"
  "github.com/robertof/go-miband-heartrate/live"
  "github.com/robertof/go-miband-heartrate/metrics"
)

func gather(t *testing.T, snap live.Snapshot) map[string]float64 {
  t.Helper()

  reg := prometheus.NewRegistry()
  metrics.RegisterCollector(func() live.Snapshot { return snap }, reg)

  families, err := reg.Gather()

  if err != nil {
    t.Fatalf("Gather() got error: %v", err)
  }

  out := make(map[string]float64)

  for _, mf := range families {
    for _, m := range mf.GetMetric() {
      switch {
      case m.GetGauge() != nil:
        out[mf.GetName()] = m.GetGauge().GetValue()
      case m.GetCounter() != nil:
        out[mf.GetName()] = m.GetCounter().GetValue()
      }
    }
  }

  return out
}

func TestCollect_WithReading(t *testing.T) {
  got := gather(t, live.Snapshot{
    HasReading: true,
    Value: 72,
    DeviceName: "Mi Smart Band 4",
    SignalStrength: -61,
    HasSignalStrength: true,
    LastUpdate: time.Now(),
    Elapsed: 2 * time.Second,
    Freshness: live.Fresh,
    Generation: 5,
  })

  want := map[string]float64{
    "miband_heart_rate_bpm": 72,
    "miband_signal_strength_dbm": -61,
    "miband_last_update_age_seconds": 2,
    "miband_reading_fresh": 1,
    "miband_store_generations_total": 5,
  }

  for name, value := range want {
    if got[name] != value {
      t.Fatalf("metric %v: got %v, wanted %v (all: %v)", name, got[name], value, got)
    }
  }
}

func TestCollect_WithoutReading(t *testing.T) {
  got := gather(t, live.Snapshot{Elapsed: 30 * time.Second})

  if _, ok := got["miband_heart_rate_bpm"]; ok {
    t.Fatalf("heart rate exported before any reading: %v", got)
  }

  if got["miband_reading_fresh"] != 0 {
    t.Fatalf("miband_reading_fresh: got %v, wanted 0", got["miband_reading_fresh"])
  }
}

func TestCollect_CountersFollowNamingConvention(t *testing.T) {
  reg := prometheus.NewRegistry()
  metrics.RegisterCollector(func() live.Snapshot { return live.Snapshot{Generation: 3} }, reg)

  families, err := reg.Gather()

  if err != nil {
    t.Fatalf("Gather() got error: %v", err)
  }

  for _, mf := range families {
    isCounter := mf.GetType() == dto.MetricType_COUNTER
    hasSuffix := strings.HasSuffix(mf.GetName(), "_total")

    if isCounter != hasSuffix {
      t.Fatalf("metric %v: type %v, wanted counters and only counters to end in _total", mf.GetName(), mf.GetType())
    }
  }
}
