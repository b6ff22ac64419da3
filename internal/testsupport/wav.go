package testsupport

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
)

// WAVSpec describes a synthetic RIFF/WAVE fixture.
type WAVSpec struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
	// Format is the fmt chunk audio format; 0 means PCM (1). With
	// Extensible set it selects the SubFormat GUID instead.
	Format uint16
	// Extensible writes a WAVE_FORMAT_EXTENSIBLE fmt chunk.
	Extensible bool
}

// SpeechWAV is the accepted shape: 16 kHz mono 16-bit PCM.
func SpeechWAV(frames int) WAVSpec {
	return WAVSpec{SampleRate: 16000, Channels: 1, BitDepth: 16, Frames: frames}
}

// WAV renders spec as a little-endian RIFF file holding a 440 Hz tone.
func WAV(spec WAVSpec) []byte {
	format := spec.Format
	if format == 0 {
		format = 1
	}
	bytesPerSample := spec.BitDepth / 8
	blockAlign := spec.Channels * bytesPerSample
	dataSize := spec.Frames * blockAlign

	fmtSize := 16
	if spec.Extensible {
		fmtSize = 40
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	writeLE(&buf, uint32(4+8+fmtSize+8+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeLE(&buf, uint32(fmtSize))
	if spec.Extensible {
		writeLE(&buf, uint16(0xFFFE))
	} else {
		writeLE(&buf, format)
	}
	writeLE(&buf, uint16(spec.Channels))
	writeLE(&buf, uint32(spec.SampleRate))
	writeLE(&buf, uint32(spec.SampleRate*blockAlign))
	writeLE(&buf, uint16(blockAlign))
	writeLE(&buf, uint16(spec.BitDepth))
	if spec.Extensible {
		writeLE(&buf, uint16(22))
		writeLE(&buf, uint16(spec.BitDepth))
		writeLE(&buf, uint32(0))
		// Sub-format code followed by the KSDATAFORMAT GUID tail.
		writeLE(&buf, uint32(format))
		buf.Write([]byte{0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71})
	}

	buf.WriteString("data")
	writeLE(&buf, uint32(dataSize))
	for i := 0; i < spec.Frames; i++ {
		v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(max(spec.SampleRate, 1)))
		for c := 0; c < spec.Channels; c++ {
			writeSample(&buf, v, spec.BitDepth)
		}
	}
	return buf.Bytes()
}

// Base64WAV returns WAV(spec) in standard padded base64.
func Base64WAV(spec WAVSpec) string {
	return base64.StdEncoding.EncodeToString(WAV(spec))
}

func writeSample(buf *bytes.Buffer, v float64, bitDepth int) {
	switch bitDepth {
	case 8:
		buf.WriteByte(byte(int(v*127) + 128))
	case 16:
		writeLE(buf, int16(v*math.MaxInt16))
	case 24:
		s := int32(v * (1<<23 - 1))
		buf.Write([]byte{byte(s), byte(s >> 8), byte(s >> 16)})
	case 32:
		writeLE(buf, int32(v*math.MaxInt32))
	}
}

func writeLE(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}
