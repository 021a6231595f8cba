package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertof/go-miband-heartrate/ble"
	"github.com/robertof/go-miband-heartrate/collector"
	"github.com/robertof/go-miband-heartrate/live"
	"github.com/robertof/go-miband-heartrate/metrics"
	"github.com/robertof/go-miband-heartrate/publish"
	"github.com/robertof/go-miband-heartrate/server"
	"github.com/robertof/go-miband-heartrate/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()

  if cfg.Trace || os.Getenv("TRACE") != "" {
      zerolog.SetGlobalLevel(zerolog.TraceLevel)
  } else if cfg.Debug || os.Getenv("DEBUG") != "" {
      zerolog.SetGlobalLevel(zerolog.DebugLevel)
  } else {
      zerolog.SetGlobalLevel(zerolog.InfoLevel)
  }

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return
  }

  log.Info().
    Str("BindAddr", cfg.BindAddress).
    Stringer("Device", cfg.Device).
    Int("BluetoothDeviceID", cfg.BluetoothDeviceId).
    Int("HistoryCapacity", cfg.Live.HistoryCapacity).
    Dur("StaleAfterSec", cfg.Live.StaleAfter).
    Bool("Metrics", cfg.EnableMetrics).
    Bool("MQTT", cfg.MQTT.Enabled()).
    Msg("Starting with the specified configuration")

  store, err := live.New(cfg.Live, nil)

  if err != nil {
    log.Fatal().Err(err).Msg("Invalid live store configuration")
  }

  // before initBle: a fatal exit past this point would leave the adapter scanning.
  var mqttClient mqtt.Client

  if cfg.MQTT.Enabled() {
    if mqttClient, err = publish.Connect(cfg.MQTT); err != nil {
      log.Fatal().Err(err).Msg("Failed to connect to the MQTT broker")
    }
  }

  bleHandle := initBle(cfg)

  var metricsHandler http.Handler

  if cfg.EnableMetrics {
    registry := prometheus.NewRegistry()
    metrics.RegisterCollector(store.Snapshot, registry)
    collector.RegisterMetrics(registry)

    metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
  }

  ctx := ble.WrapContextWithSigHandler(context.WithCancel(context.Background()))
  g, ctx := errgroup.WithContext(ctx)

  g.Go(func() error {
    return collector.New(bleHandle, cfg.Device, store).Run(ctx)
  })

  g.Go(func() error {
    return server.New(store, metricsHandler).ListenAndServe(ctx, cfg.BindAddress)
  })

  if mqttClient != nil {
    g.Go(func() error {
      return publish.NewPublisher(mqttClient, store, cfg.MQTT).Run(ctx)
    })
  }

  err = g.Wait()

  bleHandle.Stop()

  if mqttClient != nil {
    mqttClient.Disconnect(250)
  }

  if code := exitCode(err); code != 0 {
    if errors.Is(err, ble.ErrAdapterUnavailable) {
      log.Error().Err(err).Msg("Bluetooth adapter failed while scanning")
    } else {
      log.Error().Err(err).Msg("Shutting down after failure")
    }

    os.Exit(code)
  }

  log.Info().Msg("Shut down cleanly")
}

// exitCode maps the error that ended the task group to a process exit status.
// Cancellation is how a signal stops the program, anything else is a failure.
func exitCode(err error) int {
  if err == nil || errors.Is(err, context.Canceled) {
    return 0
  }

  return 1
}

func initBle(cfg config) *ble.Handle {
  var bleFlags ble.Flags
  var allowList []net.HardwareAddr

  if addr := cfg.Device.Addr(); addr != nil {
    bleFlags |= ble.FlagEnableDeviceAllowList
    allowList = append(allowList, addr)
  }

  if cfg.ActiveScan {
    bleFlags |= ble.FlagScanTypeActive
  }

  bleHandle, err := ble.Init(cfg.BluetoothDeviceId, bleFlags)

  if errors.Is(err, ble.ErrAdapterUnavailable) {
    log.Fatal().Err(err).Msg("No usable Bluetooth adapter, is the HCI device up and are we allowed to use it?")
  } else if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  if len(allowList) == 0 {
    return bleHandle
  }

  log.Debug().
    Array("Addresses", utils.ToZeroLogArray(allowList)).
    Msg("Restricting scan to the configured band")

  if err := bleHandle.SetAllowListedAddresses(allowList); err != nil {
    log.Error().Err(err).Msg("Failed to set device allow list")
  }

  return bleHandle
}
