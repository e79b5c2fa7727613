package render

import (
	"fmt"

	"meshspin/internal/asset"
	"meshspin/internal/gpu"
)

// Stager batches uploads of CPU data into GPU-only buffers and textures.
// Flush copies everything through two transfer buffers (one for buffer
// data, one for pixels) in a single copy pass.
type Stager struct {
	dev      gpu.Device
	buffers  []bufferUpload
	textures []textureUpload
}

type bufferUpload struct {
	dst  gpu.Buffer
	data []byte
}

type textureUpload struct {
	dst gpu.Texture
	px  *asset.PixelBuffer
}

func NewStager(dev gpu.Device) *Stager {
	return &Stager{dev: dev}
}

// AddBuffer queues data for dst. The slice must stay unchanged until Flush.
func (s *Stager) AddBuffer(dst gpu.Buffer, data []byte) {
	s.buffers = append(s.buffers, bufferUpload{dst: dst, data: data})
}

// AddTexture queues px for the whole of dst.
func (s *Stager) AddTexture(dst gpu.Texture, px *asset.PixelBuffer) {
	s.textures = append(s.textures, textureUpload{dst: dst, px: px})
}

// Offsets lays sizes out back to back and returns the start of each one
// and the total size.
func Offsets(sizes ...uint32) ([]uint32, uint32) {
	offsets := make([]uint32, len(sizes))
	var total uint32
	for i, n := range sizes {
		offsets[i] = total
		total += n
	}
	return offsets, total
}

// Flush uploads every queued item and submits the copy pass. Transfer
// buffers are released once the command buffer is submitted, or on any
// failure before that.
func (s *Stager) Flush() error {
	scope := gpu.NewScope(s.dev)
	defer scope.Close()

	bufSizes := make([]uint32, len(s.buffers))
	for i, u := range s.buffers {
		if uint32(len(u.data)) > u.dst.Size() {
			return fmt.Errorf("upload to %s: %d bytes do not fit in %d", u.dst.Name(), len(u.data), u.dst.Size())
		}
		bufSizes[i] = uint32(len(u.data))
	}
	bufOffsets, bufTotal := Offsets(bufSizes...)

	texSizes := make([]uint32, len(s.textures))
	for i, u := range s.textures {
		if u.px.Width != int(u.dst.Width()) || u.px.Height != int(u.dst.Height()) {
			return fmt.Errorf("upload to %s: image is %dx%d, texture is %dx%d",
				u.dst.Name(), u.px.Width, u.px.Height, u.dst.Width(), u.dst.Height())
		}
		texSizes[i] = uint32(u.px.Size())
	}
	texOffsets, texTotal := Offsets(texSizes...)

	var bufTB, texTB gpu.TransferBuffer
	var err error
	if bufTotal > 0 {
		bufTB, err = s.fill("Buffer Transfer Buffer", bufTotal, func(dst []byte) {
			for i, u := range s.buffers {
				copy(dst[bufOffsets[i]:], u.data)
			}
		})
		if err != nil {
			return err
		}
		scope.Hold(bufTB)
	}
	if texTotal > 0 {
		texTB, err = s.fill("Texture Transfer Buffer", texTotal, func(dst []byte) {
			for i, u := range s.textures {
				copy(dst[texOffsets[i]:], u.px.Pixels[:u.px.Size()])
			}
		})
		if err != nil {
			return err
		}
		scope.Hold(texTB)
	}

	cb, err := s.dev.AcquireCommandBuffer()
	if err != nil {
		return fmt.Errorf("couldn't acquire GPU command buffer: %w", err)
	}
	pass := cb.BeginCopyPass()
	for i, u := range s.buffers {
		if bufSizes[i] == 0 {
			continue
		}
		pass.UploadToBuffer(
			gpu.TransferBufferLocation{TransferBuffer: bufTB, Offset: bufOffsets[i]},
			gpu.BufferRegion{Buffer: u.dst, Size: bufSizes[i]},
		)
	}
	for i, u := range s.textures {
		if texSizes[i] == 0 {
			continue
		}
		pass.UploadToTexture(
			gpu.TextureTransferInfo{
				TransferBuffer: texTB,
				Offset:         texOffsets[i],
				PixelsPerRow:   uint32(u.px.Pitch / 4),
				RowsPerLayer:   uint32(u.px.Height),
			},
			gpu.TextureRegion{Texture: u.dst, W: uint32(u.px.Width), H: uint32(u.px.Height)},
		)
	}
	pass.End()
	if err := cb.Submit(); err != nil {
		return fmt.Errorf("couldn't submit GPU command buffer: %w", err)
	}

	s.buffers, s.textures = nil, nil
	return nil
}

// fill creates a transfer buffer of size bytes and lets write populate it
// while mapped.
func (s *Stager) fill(name string, size uint32, write func([]byte)) (gpu.TransferBuffer, error) {
	tb, err := s.dev.CreateTransferBuffer(&gpu.TransferBufferCreateInfo{Name: name, Size: size})
	if err != nil {
		return nil, fmt.Errorf("couldn't create transfer buffer: %w", err)
	}
	data, err := s.dev.MapTransferBuffer(tb)
	if err != nil {
		s.dev.Release(tb)
		return nil, fmt.Errorf("couldn't map transfer buffer: %w", err)
	}
	write(data[:size])
	s.dev.UnmapTransferBuffer(tb)
	return tb, nil
}
