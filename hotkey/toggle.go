package hotkey

import "sync"

// Toggle turns press/release pairs into taps: the first tap starts a
// recording, the next one stops it. Whether a tap means start or stop is up
// to the receiver, which knows if a session is running.
type Toggle struct {
	taps chan struct{}
	stop chan struct{}
	once sync.Once
}

func NewToggle(hk Hotkey) *Toggle {
	t := &Toggle{
		taps: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	go t.run(hk)
	return t
}

// Taps delivers one value per completed tap. Taps arriving while the
// previous one is still unread are dropped.
func (t *Toggle) Taps() <-chan struct{} { return t.taps }

func (t *Toggle) Close() {
	t.once.Do(func() { close(t.stop) })
}

func (t *Toggle) run(hk Hotkey) {
	for {
		select {
		case <-t.stop:
			return
		case <-hk.Keydown():
		}
		select {
		case <-t.stop:
			return
		case <-hk.Keyup():
		}
		select {
		case t.taps <- struct{}{}:
		default:
		}
	}
}
