//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"medilingua/log"
)

// evdev key codes from linux/input-event-codes.h
const (
	evKey     = 1
	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLShift = 42
	keyRShift = 54
	keySpace  = 57
)

const eventSize = 24 // struct input_event on 64-bit

const (
	inputDir = "/dev/input"
	sysInput = "/sys/class/input"
)

var errNoKeyboard = errors.New("no keyboard devices found (is user in 'input' group?)")

// keyboard is an evdev node that reports enough key capabilities to be a
// real keyboard rather than a power button or lid switch.
type keyboard struct {
	path string
	name string
}

func (k keyboard) String() string {
	if k.name == "" {
		return k.path
	}
	return fmt.Sprintf("%s (%s)", k.path, k.name)
}

// chord tracks modifier state for one device and reports Ctrl+Shift+Space
// edges. Repeat events (value 2) leave state unchanged.
type chord struct {
	ctrl, shift, space bool
}

type edge int

const (
	edgeNone edge = iota
	edgeDown
	edgeUp
)

func (c *chord) feed(code uint16, value int32) edge {
	if value != 0 && value != 1 {
		return edgeNone
	}
	down := value == 1
	switch code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = down
	case keyLShift, keyRShift:
		c.shift = down
	case keySpace:
		if down && !c.space && c.ctrl && c.shift {
			c.space = true
			return edgeDown
		}
		if !down && c.space {
			c.space = false
			return edgeUp
		}
	}
	return edgeNone
}

type evdevHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	mu      sync.Mutex
	devices []*os.File
	closed  bool
}

func New() Hotkey {
	return &evdevHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	kbs, err := scanKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(kbs) == 0 {
		return errNoKeyboard
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, kb := range kbs {
		f, err := os.Open(kb.path)
		if err != nil {
			log.Warnf("hotkey: skipping %s: %v", kb, err)
			continue
		}
		h.devices = append(h.devices, f)
		go h.listen(f)
	}
	if len(h.devices) == 0 {
		return fmt.Errorf("could not open any of %d keyboard device(s) (run: sudo usermod -aG input $USER, then re-login)", len(kbs))
	}
	return nil
}

// listen decodes input_event records until the device is closed.
func (h *evdevHotkey) listen(r io.Reader) {
	var c chord
	buf := make([]byte, eventSize*16)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		for off := 0; off+eventSize <= n; off += eventSize {
			ev := buf[off : off+eventSize]
			if binary.LittleEndian.Uint16(ev[16:]) != evKey {
				continue
			}
			code := binary.LittleEndian.Uint16(ev[18:])
			value := int32(binary.LittleEndian.Uint32(ev[20:]))
			switch c.feed(code, value) {
			case edgeDown:
				notify(h.keydown)
			case edgeUp:
				notify(h.keyup)
			}
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Unregister closes every open device, which unblocks the readers.
func (h *evdevHotkey) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, f := range h.devices {
		f.Close()
	}
	h.devices = nil
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

func scanKeyboards() ([]keyboard, error) {
	return scanKeyboardsIn(inputDir, sysInput)
}

func scanKeyboardsIn(devDir, sysDir string) ([]keyboard, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}
	var kbs []keyboard
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "event") {
			continue
		}
		dev := filepath.Join(sysDir, name, "device")
		if !hasKeyboardCaps(filepath.Join(dev, "capabilities", "key")) {
			continue
		}
		label, _ := os.ReadFile(filepath.Join(dev, "name"))
		kbs = append(kbs, keyboard{
			path: filepath.Join(devDir, name),
			name: strings.TrimSpace(string(label)),
		})
	}
	return kbs, nil
}

// hasKeyboardCaps reports whether the key capability bitmap is wide enough
// to cover the letter rows. Lid switches and sleep buttons report a short one.
func hasKeyboardCaps(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

// Diagnose reports whether at least one keyboard can be opened for reading.
func Diagnose() (string, error) {
	kbs, err := scanKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(kbs) == 0 {
		return "", errNoKeyboard
	}
	for _, kb := range kbs {
		f, err := os.Open(kb.path)
		if err != nil {
			continue
		}
		f.Close()
		return fmt.Sprintf("%d keyboard(s) found, opened %s", len(kbs), kb), nil
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(kbs))
}
