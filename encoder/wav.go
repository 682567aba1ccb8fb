package encoder

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavWriter buffers samples until finish, since the RIFF header carries
// the data size.
type wavWriter struct {
	samples []int
}

func (w *wavWriter) writeBlock(block []int16) error {
	for _, s := range block {
		w.samples = append(w.samples, int(s))
	}
	return nil
}

func (w *wavWriter) finish() ([]byte, error) {
	ws := &seekBuffer{}
	enc := wav.NewEncoder(ws, SampleRate, BitsPerSample, Channels, 1)
	err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           w.samples,
		SourceBitDepth: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("writing wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing wav: %w", err)
	}
	return ws.buf, nil
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// seeks back to patch the header on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if need := s.pos + len(p); need > len(s.buf) {
		s.buf = append(s.buf, make([]byte, need-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos += len(p)
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("seek: negative position %d", pos)
	}
	s.pos = int(pos)
	return pos, nil
}
