// Package gputest provides a recording gpu.Device for tests.
//
// The device keeps every resource in memory, executes copy passes on
// Submit so buffer and texture contents can be inspected, and records
// protocol violations (double release, use after release, leaks, mapped
// transfer buffers in a submission) instead of failing immediately.
package gputest

import (
	"errors"
	"fmt"
	"slices"

	"meshspin/internal/gpu"
)

// ErrInjected is returned by operations listed in Device.Fail with a nil
// error value.
var ErrInjected = errors.New("injected failure")

// Device is an in-memory gpu.Device.
type Device struct {
	Formats         gpu.ShaderFormat
	SwapchainFormat gpu.TextureFormat
	// DepthFormats lists depth/stencil formats reported as supported.
	DepthFormats map[gpu.TextureFormat]bool
	// SampleCounts lists supported multisample counts; nil accepts all.
	SampleCounts map[gpu.SampleCount]bool

	SwapchainWidth  uint32
	SwapchainHeight uint32
	// SwapchainUnavailable makes WaitAndAcquireSwapchainTexture return a
	// nil texture.
	SwapchainUnavailable bool

	// Fail maps an operation name such as "CreateTexture" or "Submit" to
	// the error it returns. A nil value means ErrInjected.
	Fail map[string]error

	Created     []gpu.Resource
	Released    []gpu.Resource
	Submissions []*CommandBuffer
	Violations  []string
	Destroyed   bool

	nextID int
	live   map[gpu.Resource]bool
	open   []*CommandBuffer
}

// New returns a device advertising every shader format, a B8G8R8A8
// swapchain of 800x600 and both depth/stencil candidates.
func New() *Device {
	return &Device{
		Formats:         gpu.ShaderFormatSPIRV | gpu.ShaderFormatMSL | gpu.ShaderFormatDXIL,
		SwapchainFormat: gpu.TextureFormatB8G8R8A8Unorm,
		DepthFormats: map[gpu.TextureFormat]bool{
			gpu.TextureFormatD24UnormS8Uint: true,
			gpu.TextureFormatD32FloatS8Uint: true,
		},
		SwapchainWidth:  800,
		SwapchainHeight: 600,
	}
}

type resource struct {
	ID    int
	Label string
}

func (r *resource) Name() string { return r.Label }

type Buffer struct {
	resource
	Info gpu.BufferCreateInfo
	Data []byte
}

func (b *Buffer) Size() uint32 { return b.Info.Size }

type TransferBuffer struct {
	resource
	Data   []byte
	Mapped bool
}

func (b *TransferBuffer) Size() uint32 { return uint32(len(b.Data)) }

type Texture struct {
	resource
	Info      gpu.TextureCreateInfo
	Data      []byte
	Swapchain bool
}

func (t *Texture) Width() uint32 { return t.Info.Width }
func (t *Texture) Height() uint32 { return t.Info.Height }
func (t *Texture) Format() gpu.TextureFormat { return t.Info.Format }
func (t *Texture) SampleCount() gpu.SampleCount { return t.Info.SampleCount }

type Sampler struct {
	resource
	Info gpu.SamplerCreateInfo
}

type Shader struct {
	resource
	Info gpu.ShaderCreateInfo
}

func (s *Shader) Stage() gpu.ShaderStage { return s.Info.Stage }

type Pipeline struct {
	resource
	Info gpu.GraphicsPipelineCreateInfo
}

func (d *Device) fail(op string) error {
	err, ok := d.Fail[op]
	if !ok {
		return nil
	}
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return err
}

func (d *Device) violate(format string, args ...any) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) newResource(name string) resource {
	d.nextID++
	return resource{ID: d.nextID, Label: name}
}

func (d *Device) track(r gpu.Resource) {
	if d.live == nil {
		d.live = make(map[gpu.Resource]bool)
	}
	d.live[r] = true
	d.Created = append(d.Created, r)
}

// IsLive reports whether r was created and not yet released.
func (d *Device) IsLive(r gpu.Resource) bool {
	return d.live[r]
}

// Live returns the live resources in creation order.
func (d *Device) Live() []gpu.Resource {
	var out []gpu.Resource
	for _, r := range d.Created {
		if d.live[r] {
			out = append(out, r)
		}
	}
	return out
}

// LiveNamed returns the live resources labelled name.
func (d *Device) LiveNamed(name string) []gpu.Resource {
	var out []gpu.Resource
	for _, r := range d.Live() {
		if r.Name() == name {
			out = append(out, r)
		}
	}
	return out
}

func (d *Device) Driver() string { return "gputest" }
func (d *Device) ShaderFormats() gpu.ShaderFormat { return d.Formats }
func (d *Device) SwapchainTextureFormat() gpu.TextureFormat { return d.SwapchainFormat }

func (d *Device) TextureSupportsFormat(format gpu.TextureFormat, usage gpu.TextureUsage) bool {
	if usage&gpu.TextureUsageDepthStencilTarget != 0 {
		return d.DepthFormats[format]
	}
	return !format.IsDepth() && format != gpu.TextureFormatInvalid
}

func (d *Device) TextureSupportsSampleCount(format gpu.TextureFormat, count gpu.SampleCount) bool {
	if d.SampleCounts == nil {
		return true
	}
	return d.SampleCounts[count]
}

func (d *Device) CreateShader(info *gpu.ShaderCreateInfo) (gpu.Shader, error) {
	if err := d.fail("CreateShader"); err != nil {
		return nil, err
	}
	if d.Formats&info.Format == 0 {
		return nil, fmt.Errorf("create shader %q: format %v not supported", info.Name, info.Format)
	}
	s := &Shader{resource: d.newResource(info.Name), Info: *info}
	d.track(s)
	return s, nil
}

func (d *Device) CreateGraphicsPipeline(info *gpu.GraphicsPipelineCreateInfo) (gpu.GraphicsPipeline, error) {
	if err := d.fail("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	for _, s := range []gpu.Shader{info.VertexShader, info.FragmentShader} {
		if s == nil || !d.live[s] {
			d.violate("pipeline %q created with a dead shader", info.Name)
		}
	}
	p := &Pipeline{resource: d.newResource(info.Name), Info: *info}
	d.track(p)
	return p, nil
}

func (d *Device) CreateBuffer(info *gpu.BufferCreateInfo) (gpu.Buffer, error) {
	if err := d.fail("CreateBuffer"); err != nil {
		return nil, err
	}
	b := &Buffer{resource: d.newResource(info.Name), Info: *info, Data: make([]byte, info.Size)}
	d.track(b)
	return b, nil
}

func (d *Device) CreateTexture(info *gpu.TextureCreateInfo) (gpu.Texture, error) {
	if err := d.fail("CreateTexture"); err != nil {
		return nil, err
	}
	t := &Texture{resource: d.newResource(info.Name), Info: *info}
	if info.Usage&gpu.TextureUsageSampler != 0 {
		t.Data = make([]byte, int(info.Width)*int(info.Height)*4)
	}
	d.track(t)
	return t, nil
}

func (d *Device) CreateSampler(info *gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	if err := d.fail("CreateSampler"); err != nil {
		return nil, err
	}
	s := &Sampler{resource: d.newResource(info.Name), Info: *info}
	d.track(s)
	return s, nil
}

func (d *Device) CreateTransferBuffer(info *gpu.TransferBufferCreateInfo) (gpu.TransferBuffer, error) {
	if err := d.fail("CreateTransferBuffer"); err != nil {
		return nil, err
	}
	tb := &TransferBuffer{resource: d.newResource(info.Name), Data: make([]byte, info.Size)}
	d.track(tb)
	return tb, nil
}

func (d *Device) MapTransferBuffer(tb gpu.TransferBuffer) ([]byte, error) {
	if err := d.fail("MapTransferBuffer"); err != nil {
		return nil, err
	}
	b := tb.(*TransferBuffer)
	if !d.live[b] {
		d.violate("map of released transfer buffer %q", b.Label)
	}
	b.Mapped = true
	return b.Data, nil
}

func (d *Device) UnmapTransferBuffer(tb gpu.TransferBuffer) {
	b := tb.(*TransferBuffer)
	if !b.Mapped {
		d.violate("unmap of unmapped transfer buffer %q", b.Label)
	}
	b.Mapped = false
}

func (d *Device) AcquireCommandBuffer() (gpu.CommandBuffer, error) {
	if err := d.fail("AcquireCommandBuffer"); err != nil {
		return nil, err
	}
	cb := &CommandBuffer{dev: d}
	d.open = append(d.open, cb)
	return cb, nil
}

func (d *Device) Release(r gpu.Resource) {
	if r == nil {
		d.violate("release of nil resource")
		return
	}
	if !d.live[r] {
		d.violate("double release of %q", r.Name())
		return
	}
	for _, cb := range d.open {
		if cb.references(r) {
			d.violate("release of %q while referenced by an unsubmitted command buffer", r.Name())
		}
	}
	delete(d.live, r)
	d.Released = append(d.Released, r)
}

func (d *Device) WaitIdle() error {
	return d.fail("WaitIdle")
}

func (d *Device) Destroy() {
	if d.Destroyed {
		d.violate("device destroyed twice")
	}
	for _, r := range d.Live() {
		d.violate("leaked %q", r.Name())
	}
	d.Destroyed = true
}

// Draws returns every draw recorded by submitted command buffers.
func (d *Device) Draws() []Draw {
	var out []Draw
	for _, cb := range d.Submissions {
		for _, rp := range cb.RenderPasses {
			out = append(out, rp.Draws...)
		}
	}
	return out
}

// RenderPasses returns every render pass of submitted command buffers.
func (d *Device) RenderPasses() []*RenderPass {
	var out []*RenderPass
	for _, cb := range d.Submissions {
		out = append(out, cb.RenderPasses...)
	}
	return out
}

func (d *Device) closeCommandBuffer(cb *CommandBuffer) {
	d.open = slices.DeleteFunc(d.open, func(o *CommandBuffer) bool { return o == cb })
}
