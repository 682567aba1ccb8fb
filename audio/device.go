package audio

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// picker is the key handling behind SelectDevice, kept apart from the
// terminal so it can be driven from tests.
type picker struct {
	devices []DeviceInfo
	current string // ID of the device in use, tagged in the list
	cursor  int
}

func newPicker(devices []DeviceInfo, current *DeviceInfo) *picker {
	p := &picker{devices: devices}
	if current != nil {
		p.current = current.ID
		for i, d := range devices {
			if d.ID == current.ID {
				p.cursor = i
			}
		}
	}
	return p
}

type pickResult int

const (
	pickPending pickResult = iota
	pickChosen
	pickCancelled
)

// key applies one read from a raw-mode terminal.
func (p *picker) key(b []byte) pickResult {
	switch {
	case len(b) == 1 && (b[0] == '\r' || b[0] == '\n'):
		return pickChosen
	case len(b) == 1 && (b[0] == 3 || b[0] == 'q'): // Ctrl+C
		return pickCancelled
	case len(b) == 1 && b[0] == 'j', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'B':
		if p.cursor < len(p.devices)-1 {
			p.cursor++
		}
	case len(b) == 1 && b[0] == 'k', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'A':
		if p.cursor > 0 {
			p.cursor--
		}
	}
	return pickPending
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓, Enter to confirm, q to keep current):\r\n\r\n")
	for i, d := range p.devices {
		tags := ""
		if d.ID == p.current {
			tags += " \x1b[2m(in use)\x1b[0m"
		}
		if IsBluetooth(d.Name) {
			tags += " \x1b[33m[⚠ Lower audio quality]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s\x1b[0m%s\r\n", d.Name, tags)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tags)
		}
	}
}

func (p *picker) run(r io.Reader, w io.Writer) (*DeviceInfo, error) {
	p.render(w)
	buf := make([]byte, 3)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch p.key(buf[:n]) {
		case pickChosen:
			fmt.Fprint(w, "\r\n")
			return &p.devices[p.cursor], nil
		case pickCancelled:
			fmt.Fprint(w, "\r\n")
			return nil, nil
		}
		fmt.Fprintf(w, "\x1b[%dA", len(p.devices)+2)
		p.render(w)
	}
}

// SelectDevice presents an interactive microphone picker, starting on current
// when it is still present. A single device is returned without prompting.
// A nil device with a nil error means the user backed out.
func SelectDevice(dp DeviceProvider, current *DeviceInfo) (*DeviceInfo, error) {
	devices, err := dp.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	return newPicker(devices, current).run(os.Stdin, os.Stdout)
}

// FindDevice looks a device up by its display name.
func FindDevice(p DeviceProvider, name string) (*DeviceInfo, error) {
	devices, err := p.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoDevice, name)
}
