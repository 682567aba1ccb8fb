package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medilingua/audio"
)

// pluggable is a DeviceProvider whose device list can change under test.
type pluggable struct {
	*audio.FakeProvider

	mu       sync.Mutex
	devices  []audio.DeviceInfo
	selected *audio.DeviceInfo
	selects  int
}

func (p *pluggable) Devices() ([]audio.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audio.DeviceInfo(nil), p.devices...), nil
}

func (p *pluggable) Select(d *audio.DeviceInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = d
	p.selects++
}

func (p *pluggable) Close() {}

func (p *pluggable) plug(devs ...audio.DeviceInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = devs
}

func (p *pluggable) selectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selects
}

func (p *pluggable) active() *audio.DeviceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

var (
	headset = audio.DeviceInfo{ID: "x", Name: "Dictation Headset"}
	desk    = audio.DeviceInfo{ID: "y", Name: "Desk Microphone"}
)

func newPluggable(devs ...audio.DeviceInfo) *pluggable {
	return &pluggable{FakeProvider: audio.NewFakeProvider(), devices: devs}
}

func TestDeviceWatchUnplugAndReplug(t *testing.T) {
	p := newPluggable(headset, desk)
	w := newDeviceWatch(p, &recordingSink{}, &headset)

	p.plug(desk)
	w.check()
	assert.Nil(t, p.active(), "falls back to the system default")

	w.check()
	assert.Equal(t, 1, p.selectCount(), "no repeated fallback while still unplugged")

	p.plug(desk, headset)
	w.check()
	require.NotNil(t, p.active())
	assert.Equal(t, "Dictation Headset", p.active().Name)
}

func TestDeviceWatchFollowsLaterChoice(t *testing.T) {
	p := newPluggable(headset, desk)
	w := newDeviceWatch(p, &recordingSink{}, &headset)

	w.choose(&desk)
	p.plug(desk)
	w.check()

	require.NotNil(t, p.active())
	assert.Equal(t, "Desk Microphone", p.active().Name, "unplugging a device no longer in use changes nothing")
	assert.Equal(t, &desk, w.current())
}

func TestDeviceWatchStartsWatchingAfterFirstChoice(t *testing.T) {
	p := newPluggable(headset, desk)
	w := newDeviceWatch(p, &recordingSink{}, nil)

	p.plug(headset)
	w.check()
	assert.Zero(t, p.selectCount(), "system default is not watched")

	w.choose(&headset)
	p.plug(desk)
	w.check()
	assert.Nil(t, p.active())
}

func TestDeviceWatchRunStopsWithContext(t *testing.T) {
	p := newPluggable(headset)
	w := newDeviceWatch(p, &recordingSink{}, &headset)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.run(ctx, time.Millisecond)
		close(done)
	}()

	p.plug()
	require.Eventually(t, func() bool { return p.active() == nil && p.selectCount() > 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}
