package audio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// keys yields one terminal read per Read call.
type keys [][]byte

func (k *keys) Read(p []byte) (int, error) {
	if len(*k) == 0 {
		return 0, io.EOF
	}
	n := copy(p, (*k)[0])
	*k = (*k)[1:]
	return n, nil
}

var (
	up   = []byte{0x1b, '[', 'A'}
	down = []byte{0x1b, '[', 'B'}
)

func mics() []DeviceInfo {
	return []DeviceInfo{
		{ID: "0", Name: "Built-in Microphone"},
		{ID: "1", Name: "USB Dictation Mic"},
		{ID: "2", Name: "AirPods Pro"},
	}
}

func TestPickerStartsOnCurrent(t *testing.T) {
	cur := mics()[1]
	in := &keys{{'\r'}}
	var out bytes.Buffer
	got, err := newPicker(mics(), &cur).run(in, &out)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "1" {
		t.Fatalf("got %+v, want USB Dictation Mic", got)
	}
	if !strings.Contains(out.String(), "(in use)") {
		t.Error("current device not tagged")
	}
}

func TestPickerNavigation(t *testing.T) {
	in := &keys{down, down, down, up, {'j'}, {'\r'}}
	got, err := newPicker(mics(), nil).run(in, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "2" {
		t.Fatalf("got %+v, want AirPods Pro", got)
	}
}

func TestPickerCancel(t *testing.T) {
	for _, k := range [][]byte{{3}, {'q'}} {
		got, err := newPicker(mics(), nil).run(&keys{{'j'}, k}, io.Discard)
		if err != nil || got != nil {
			t.Errorf("key %v: got %+v, %v; want nil, nil", k, got, err)
		}
	}
}

func TestPickerInputClosed(t *testing.T) {
	_, err := newPicker(mics(), nil).run(&keys{}, io.Discard)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want EOF", err)
	}
}

func TestPickerWarnsOnBluetooth(t *testing.T) {
	var out bytes.Buffer
	newPicker(mics(), nil).render(&out)
	lines := strings.Split(out.String(), "\r\n")
	for _, l := range lines {
		if strings.Contains(l, "AirPods") && !strings.Contains(l, "Lower audio quality") {
			t.Errorf("bluetooth line missing warning: %q", l)
		}
		if strings.Contains(l, "USB Dictation") && strings.Contains(l, "Lower audio quality") {
			t.Errorf("wired mic flagged as bluetooth: %q", l)
		}
	}
}

type listing struct {
	*FakeProvider
	devices []DeviceInfo
}

func (l listing) Devices() ([]DeviceInfo, error) { return l.devices, nil }
func (l listing) Select(*DeviceInfo)             {}
func (l listing) Close()                         {}

func TestFindDevice(t *testing.T) {
	p := listing{FakeProvider: NewFakeProvider(), devices: mics()}
	d, err := FindDevice(p, "USB Dictation Mic")
	if err != nil || d.ID != "1" {
		t.Fatalf("FindDevice = %+v, %v", d, err)
	}
	if _, err := FindDevice(p, "no such mic"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("err = %v, want ErrNoDevice", err)
	}
}

func TestSelectDeviceSingleSkipsPrompt(t *testing.T) {
	p := listing{FakeProvider: NewFakeProvider(), devices: mics()[:1]}
	d, err := SelectDevice(p, nil)
	if err != nil || d.ID != "0" {
		t.Fatalf("SelectDevice = %+v, %v", d, err)
	}
}
