package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"medilingua/audio"
)

const (
	SampleRate    = audio.SampleRate
	Channels      = audio.Channels
	BitsPerSample = audio.BitsPerSample
	BlockSize     = 4096
)

var ErrEmpty = errors.New("recording is empty")

// container accumulates PCM blocks and produces the finished file.
type container interface {
	writeBlock(block []int16) error
	finish() ([]byte, error)
}

func newContainer(name string) (container, error) {
	switch name {
	case "wav":
		return &wavWriter{}, nil
	case "flac":
		return newFlacWriter()
	default:
		return nil, fmt.Errorf("unknown upload format %q", name)
	}
}

// Payload is a recording packaged for upload.
type Payload struct {
	Data        []byte
	ContentType string
	Ext         string
	Frames      uint64
	EncodeTime  time.Duration
}

// Encode packages recorded audio for upload. Raw PCM is wrapped in the
// requested container; anything already encoded is passed through as is.
func Encode(data []byte, format audio.Format, name string) (*Payload, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if !format.PCM() {
		return &Payload{Data: data, ContentType: baseType(format.MimeType), Ext: extFor(format.MimeType)}, nil
	}

	c, err := newContainer(name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var frames uint64
	block := make([]int16, 0, BlockSize)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		frames += uint64(len(block))
		err := c.writeBlock(block)
		block = block[:0]
		return err
	}
	for i := 0; i+1 < len(data); i += 2 {
		block = append(block, int16(binary.LittleEndian.Uint16(data[i:])))
		if len(block) == BlockSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	out, err := c.finish()
	if err != nil {
		return nil, err
	}

	return &Payload{
		Data:        out,
		ContentType: "audio/" + name,
		Ext:         name,
		Frames:      frames,
		EncodeTime:  time.Since(start),
	}, nil
}

func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	if mime == "" {
		return "application/octet-stream"
	}
	return mime
}

func extFor(mime string) string {
	switch baseType(mime) {
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg":
		return "mp3"
	case "audio/mp4", "audio/m4a":
		return "m4a"
	case "audio/flac":
		return "flac"
	default:
		return "bin"
	}
}
