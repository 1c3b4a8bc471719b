package previewproto

import "voxelkit.ai/internal/render/extract"

// Version is the preview protocol version.
const Version = "0.1"

// Client -> Server. First message on the preview WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// MaxInstances caps the instances per frame; the rest are dropped and
	// FrameMsg.Total tells the viewer how many there were.
	MaxInstances int `json:"max_instances"`
}

// HTTP response for GET /preview/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	Name            string   `json:"name"`
	BuildID         string   `json:"build_id"`
	Revision        uint64   `json:"revision"`
	Palette         []string `json:"palette"`
}

// Server -> Client. Sent on subscribe and after every publish.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	BuildID         string `json:"build_id"`
	Name            string `json:"name"`
	Revision        uint64 `json:"revision"`

	Origin [3]float32 `json:"origin"`
	Extent [3]uint32  `json:"extent"`

	// Segments is the merged volume layout, encoded as SegmentEncoding.
	Encoding string `json:"encoding"`
	Segments string `json:"segments"`

	Total     int                `json:"total"`
	Instances []extract.Instance `json:"instances"`
}
