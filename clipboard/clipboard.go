// Package clipboard copies finished transcripts and translations to the
// system clipboard.
package clipboard

import (
	"errors"
	"sync"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard utility available")

type Clipboard interface {
	Copy(text string) error
}

// System is the desktop clipboard. On Linux it shells out to xclip, xsel or
// wl-copy, whichever is installed.
type System struct{}

func (System) Copy(text string) error {
	if cb.Unsupported {
		return ErrUnavailable
	}
	return cb.WriteAll(text)
}

func (System) Read() (string, error) {
	return Read()
}

func Copy(text string) error {
	return System{}.Copy(text)
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnavailable
	}
	return cb.ReadAll()
}

// Fake records copies in memory.
type Fake struct {
	Err error

	mu    sync.Mutex
	texts []string
}

func (f *Fake) Copy(text string) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Read() (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Last(), nil
}

// Last returns the most recent copy, or "" if nothing was copied.
func (f *Fake) Last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}
