package audio

import (
	"bytes"
	"encoding/binary"
)

const wavFormatExtensible = 0xFFFE

// KSDATAFORMAT_SUBTYPE_PCM, 00000001-0000-0010-8000-00aa00389b71.
var subFormatPCM = []byte{
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71,
}

// extensibleSubFormat returns the SubFormat GUID of a WAVE_FORMAT_EXTENSIBLE
// fmt chunk. go-audio skips the fmt extension, so the chunk is located here.
func extensibleSubFormat(data []byte) ([]byte, bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, false
	}
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, false
		}
		if id == "fmt " {
			// 16 bytes of WAVEFORMAT, cbSize, then 22 bytes ending in the GUID.
			if size < 40 {
				return nil, false
			}
			return data[body+24 : body+40], true
		}
		off = body + size + size%2
	}
	return nil, false
}

func isExtensiblePCM(data []byte) bool {
	guid, ok := extensibleSubFormat(data)
	return ok && bytes.Equal(guid, subFormatPCM)
}
