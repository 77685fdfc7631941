package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackjack/webcam"
)

// Capture geometry and per-frame wait. The inference service downscales
// anyway, so 720p is plenty.
const (
	frameWidth      = 1280
	frameHeight     = 720
	frameTimeoutSec = 5
)

// V4L2Source reads JPEG frames from a local video device. The MJPEG pixel
// format is selected on purpose so each frame is already JPEG-encoded and can
// be handed to the inference service without transcoding.
type V4L2Source struct {
	cam *webcam.Webcam
	dev string
}

// OpenDevice opens /dev/video<index> and starts streaming.
func OpenDevice(index int) (*V4L2Source, error) {
	dev := fmt.Sprintf("/dev/video%d", index)
	cam, err := webcam.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev, err)
	}

	var format webcam.PixelFormat
	for f, desc := range cam.GetSupportedFormats() {
		if strings.Contains(strings.ToUpper(desc), "JPEG") {
			format = f
			break
		}
	}
	if format == 0 {
		cam.Close()
		return nil, fmt.Errorf("%s offers no JPEG pixel format", dev)
	}
	if _, _, _, err := cam.SetImageFormat(format, frameWidth, frameHeight); err != nil {
		cam.Close()
		return nil, fmt.Errorf("set image format on %s: %w", dev, err)
	}
	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("start streaming on %s: %w", dev, err)
	}
	return &V4L2Source{cam: cam, dev: dev}, nil
}

// Grab waits for the next frame. Device timeouts and empty frames map to
// ErrNoFrame.
func (s *V4L2Source) Grab(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := s.cam.WaitForFrame(frameTimeoutSec)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, ErrNoFrame
	default:
		return nil, fmt.Errorf("wait for frame on %s: %w", s.dev, err)
	}
	frame, err := s.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame on %s: %w", s.dev, err)
	}
	if len(frame) == 0 {
		return nil, ErrNoFrame
	}
	// The driver reuses the frame buffer; hand back a copy.
	out := make([]byte, len(frame))
	copy(out, frame)
	return out, nil
}

// Close releases the device.
func (s *V4L2Source) Close() error {
	return s.cam.Close()
}
