package audio

import (
	"encoding/binary"
	"fmt"
)

// PCM layout used for every chunk and silence window.
const (
	SampleRate     = 16000
	bitsPerSample  = 16
	channels       = 1
	samplesPerMS   = SampleRate / 1000
	bytesPerSample = bitsPerSample / 8
	wavHeaderSize  = 44
)

// pcmArgs are the FFmpeg output arguments producing raw 16 kHz mono s16le on stdout.
func pcmArgs() []string {
	return []string{"-vn", "-ac", "1", "-ar", "16000", "-f", "s16le", "-acodec", "pcm_s16le", "-"}
}

// EncodeWAV wraps raw 16 kHz mono s16le samples in a canonical RIFF/WAVE header.
// FFmpeg cannot patch header sizes when writing to a pipe, so the header is built here.
func EncodeWAV(pcm []byte) []byte {
	buf := make([]byte, wavHeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1) // PCM
	le.PutUint16(buf[22:24], channels)
	le.PutUint32(buf[24:28], SampleRate)
	le.PutUint32(buf[28:32], SampleRate*channels*bytesPerSample)
	le.PutUint16(buf[32:34], channels*bytesPerSample)
	le.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

// DecodeWAV returns the samples of a 16-bit mono PCM WAV payload normalized to [-1, 1),
// along with its sample rate. Unknown chunks before "data" are skipped.
func DecodeWAV(payload []byte) ([]float32, int, error) {
	if len(payload) < 12 || string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}
	le := binary.LittleEndian

	var (
		rate   int
		gotFmt bool
	)
	off := 12
	for off+8 <= len(payload) {
		id := string(payload[off : off+4])
		size := int(le.Uint32(payload[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if body+16 > len(payload) {
				return nil, 0, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			format := le.Uint16(payload[body : body+2])
			ch := le.Uint16(payload[body+2 : body+4])
			bits := le.Uint16(payload[body+14 : body+16])
			if format != 1 || ch != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("%w: want 16-bit mono PCM, got format=%d channels=%d bits=%d",
					ErrInvalidWAV, format, ch, bits)
			}
			rate = int(le.Uint32(payload[body+4 : body+8]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return nil, 0, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			end := body + size
			if size < 0 || end > len(payload) {
				end = len(payload)
			}
			return pcmToFloat32(payload[body:end]), rate, nil
		}
		off = body + size + size%2
	}
	return nil, 0, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

func pcmToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/bytesPerSample)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768
	}
	return out
}

func pcmToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/bytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
