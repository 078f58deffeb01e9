// Package uvcstream is a frame pipeline for USB video class cameras.
//
// The package takes raw semi-planar 4:2:0 frames from a capture device
// and delivers them to exactly one consumer per session, in one of two
// modes:
//
//   - Listener mode: each frame is base64-encoded into a JSON "frame"
//     event and handed to a FramePublisher (NATS and websocket
//     publishers are included).
//   - Sink mode: each frame is converted to planar 4:2:0 (I420) and
//     pushed to a VideoSink.
//
// StreamController is the entry point. It drives the device through the
// CameraHandler boundary and runs one StreamSession at a time:
//
//	ctrl, err := uvcstream.NewStreamController(uvcstream.ControllerConfig{
//		Camera:    camera,
//		Publisher: pub,
//	})
//	status, err := ctrl.StartStream(ctx, uvcstream.StartRequest{})
//	...
//	ctrl.StopStream()
//
// Frame callbacks arrive on a single producer thread and must return
// promptly; the pipeline never blocks that thread on a consumer. Slow
// consumers lose frames rather than stalling capture.
package uvcstream
