// Package hotkey listens for the global Ctrl+Shift+Space combination.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
