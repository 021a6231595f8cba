package server

import (
	"github.com/robertof/go-miband-heartrate/live"
)

const (
	statusLive    = "live"
	statusLost    = "signal lost"
	statusWaiting = "waiting for device"

	colorLive = "#27ae60"
	colorLost = "#e74c3c"
)

// Update is the JSON body shared by /data, /data/wait, /ws and the MQTT publisher.
type Update struct {
	HeartRate   uint8  `json:"heart_rate"`
	DeviceName  string `json:"device_name"`
	RSSI        *int   `json:"rssi"`
	ElapsedSecs int64  `json:"elapsed_secs"`
	Fresh       bool   `json:"fresh"`
	Status      string `json:"status"`
	StatusColor string `json:"status_color"`
	// []int rather than []uint8, which encoding/json would turn into base64.
	History    []int  `json:"history"`
	Generation uint64 `json:"generation"`
}

// NewUpdate turns a snapshot into its JSON view, adding presentation labels.
func NewUpdate(snap live.Snapshot) Update {
	u := Update{
		HeartRate:   snap.Value,
		DeviceName:  snap.DeviceName,
		ElapsedSecs: snap.ElapsedSeconds(),
		Fresh:       snap.Fresh(),
		History:     make([]int, len(snap.History)),
		Generation:  snap.Generation,
	}

	if snap.HasSignalStrength {
		rssi := snap.SignalStrength
		u.RSSI = &rssi
	}

	for i, v := range snap.History {
		u.History[i] = int(v)
	}

	switch {
	case !snap.HasReading:
		u.Status, u.StatusColor = statusWaiting, colorLost
	case snap.Fresh():
		u.Status, u.StatusColor = statusLive, colorLive
	default:
		u.Status, u.StatusColor = statusLost, colorLost
	}

	return u
}
