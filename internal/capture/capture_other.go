//go:build !linux

package capture

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes a malgo context for non-Linux capture.
func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var out []DeviceInfo
	for _, d := range devices {
		out = append(out, DeviceInfo{ID: hex.EncodeToString(d.ID.Pointer()[:]), Name: d.Name()})
	}
	return out, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, cfg Config) (Device, error) {
	return &malgoCapture{ctx: m.ctx, device: device, cfg: cfg, clock: newClock(int(cfg.SampleRate))}, nil
}

func (m *malgoContext) Close() { m.ctx.Uninit(); m.ctx.Free() }

type malgoCapture struct {
	ctx    *malgo.AllocatedContext
	device *DeviceInfo
	cfg    Config
	clock  *clock

	callback atomic.Pointer[FrameCallback]
	dev  *malgo.Device
}

func (c *malgoCapture) Start() error {
	c.clock.reset()
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = c.cfg.Channels
	deviceConfig.SampleRate = c.cfg.SampleRate

	if c.device != nil {
		idBytes, err := hex.DecodeString(c.device.ID)
		if err == nil {
			var devID malgo.DeviceID
			copy(devID[:], idBytes)
			deviceConfig.Capture.DeviceID = devID.Pointer()
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			cb := c.callback.Load()
			if cb == nil {
				return
			}
			t := c.clock.advance(int(frameCount))
			(*cb)(data, t)
		},
	}

	dev, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("malgo init device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("malgo start: %w", err)
	}
	c.dev = dev
	return nil
}

func (c *malgoCapture) Stop() {
	if c.dev != nil {
		c.dev.Stop()
	}
}

func (c *malgoCapture) Close() {
	if c.dev != nil {
		c.dev.Uninit()
		c.dev = nil
	}
}

func (c *malgoCapture) SetCallback(cb FrameCallback) { c.callback.Store(&cb) }
func (c *malgoCapture) ClearCallback()                { c.callback.Store(nil) }

func (c *malgoCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}
