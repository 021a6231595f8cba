package main

import (
	"reflect"
	"sync"
	"testing"

	"github.com/robertof/go-miband-heartrate/device"
)

func bandAdvertisement(addr string, name string, company uint16) device.Advertisement {
	return device.Advertisement{
		Addr:              addr,
		DeviceName:        name,
		HasDeviceName:     name != "",
		SignalStrength:    -70,
		HasSignalStrength: true,
		ManufacturerData:  &device.ManufacturerData{CompanyID: company, Payload: []byte{0, 0, 0, 72}},
	}
}

func TestDiscoveredDevices_Merges(t *testing.T) {
	d := newDiscoveredDevices()

	d.observe(bandAdvertisement("bb:00:00:00:00:02", "", 0x004c))
	d.observe(bandAdvertisement("aa:00:00:00:00:01", "", 0x0157))
	d.observe(bandAdvertisement("aa:00:00:00:00:01", "Mi Smart Band 4", 0x0157))
	d.observe(device.Advertisement{Addr: "aa:00:00:00:00:01", SignalStrength: -50, HasSignalStrength: true})

	want := []discoveredDevice{
		{addr: "aa:00:00:00:00:01", name: "Mi Smart Band 4", rssi: -50, seen: 3, companies: []string{"0x0157"}},
		{addr: "bb:00:00:00:00:02", rssi: -70, seen: 1, companies: []string{"0x004c"}},
	}

	if got := d.list(); !reflect.DeepEqual(got, want) {
		t.Fatalf("list(): got %+v, wanted %+v", got, want)
	}
}

func TestDiscoveredDevices_ConcurrentObserveAndList(t *testing.T) {
	d := newDiscoveredDevices()

	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				d.observe(bandAdvertisement("aa:00:00:00:00:01", "Mi Smart Band 4", 0x0157))
			}
		}()
	}

	// listing while the scan callback is still firing must not race.
	for i := 0; i < 50; i++ {
		_ = d.list()
	}

	wg.Wait()

	if got := d.list(); len(got) != 1 || got[0].seen != 400 {
		t.Fatalf("list(): got %+v, wanted one device seen 400 times", got)
	}
}
