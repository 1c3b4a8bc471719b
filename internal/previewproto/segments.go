package previewproto

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"voxelkit.ai/internal/volume"
)

// SegmentEncoding names the FrameMsg.Segments format.
const SegmentEncoding = "SEG_VARINT_B64"

// EncodeSegments encodes a volume layout into base64(varint pairs). Each
// segment is written as (empty_run, material); occupied cells have an empty
// run of 0.
func EncodeSegments(segs []volume.Segment) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	for _, s := range segs {
		n := binary.PutUvarint(tmp[:], uint64(s.Empty))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(s.Material))
		buf.Write(tmp[:n])
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeSegments(b64 string) ([]volume.Segment, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []volume.Segment
	for i := 0; i < len(raw); {
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		m, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if m > 0xFF {
			return nil, fmt.Errorf("material too large: %d", m)
		}
		if run > 0 {
			out = append(out, volume.EmptyRun(int(run)))
		} else {
			out = append(out, volume.Occupied(volume.MaterialRef(m)))
		}
	}
	return out, nil
}
