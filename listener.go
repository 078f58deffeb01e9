package uvcstream

import "encoding/base64"

// EventFrame is the event name under which frames are delivered to a
// registered listener.
const EventFrame = "frame"

// FrameEvent is the per-frame payload delivered to an out-of-process
// listener. FrameData carries the raw semi-planar bytes base64 encoded;
// Timestamp is milliseconds since epoch.
type FrameEvent struct {
	FrameData string `json:"frameData"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Timestamp int64  `json:"timestamp"`
}

// FramePublisher delivers frame events to exactly one registered
// out-of-process consumer. Implementations must not block the caller:
// publishing either queues internally or fails fast with an error.
type FramePublisher interface {
	// PublishFrame delivers one frame event. An error is a per-frame
	// failure: the dispatcher logs it and drops the frame, the stream
	// stays live.
	PublishFrame(ev *FrameEvent) error
}

// encodeFrameData base64-encodes raw frame bytes for the listener payload.
func encodeFrameData(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
