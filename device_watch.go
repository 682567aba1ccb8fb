package main

import (
	"context"
	"sync"
	"time"

	"medilingua/audio"
	"medilingua/log"
)

const deviceWatchInterval = 3 * time.Second

// deviceWatch keeps the user's chosen microphone selected: it falls back to
// the system default while that device is unplugged and switches back once
// it reappears. The choice follows every pick made through choose.
type deviceWatch struct {
	p    audio.DeviceProvider
	sink EventSink

	mu        sync.Mutex
	preferred *audio.DeviceInfo // nil means system default, nothing to watch
	present   bool
}

func newDeviceWatch(p audio.DeviceProvider, sink EventSink, preferred *audio.DeviceInfo) *deviceWatch {
	return &deviceWatch{p: p, sink: sink, preferred: preferred, present: true}
}

// choose selects dev on the provider and makes it the watched preference.
func (w *deviceWatch) choose(dev *audio.DeviceInfo) {
	w.mu.Lock()
	w.preferred = dev
	w.present = true
	w.p.Select(dev)
	w.mu.Unlock()
	w.sink.DeviceLine(deviceLineText(dev))
}

func (w *deviceWatch) current() *audio.DeviceInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.preferred
}

// check polls the device list once.
func (w *deviceWatch) check() {
	w.mu.Lock()
	if w.preferred == nil {
		w.mu.Unlock()
		return
	}
	devices, err := w.p.Devices()
	if err != nil {
		w.mu.Unlock()
		return
	}
	var found *audio.DeviceInfo
	for i := range devices {
		if devices[i].Name == w.preferred.Name {
			found = &devices[i]
			break
		}
	}

	var line string
	switch {
	case w.present && found == nil:
		log.Info("device_disconnected: " + w.preferred.Name)
		w.p.Select(nil)
		line = deviceLineText(nil)
	case !w.present && found != nil:
		log.Info("device_reconnected: " + found.Name)
		w.p.Select(found)
		line = deviceLineText(found)
	}
	w.present = found != nil
	w.mu.Unlock()

	if line != "" {
		w.sink.DeviceLine(line)
	}
}

func (w *deviceWatch) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}
