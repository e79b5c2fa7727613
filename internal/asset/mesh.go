// Package asset loads the geometry and pixels the renderer uploads.
package asset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unsafe"

	"github.com/g3n/engine/loader/obj"
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

// ErrMeshNotLoadable is returned when a model file is missing or cannot be
// parsed.
var ErrMeshNotLoadable = errors.New("couldn't load model")

// Vertex is one mesh corner as laid out in the vertex buffer.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
}

const (
	VertexStride   = uint32(unsafe.Sizeof(Vertex{}))
	PositionOffset = uint32(unsafe.Offsetof(Vertex{}.Position))
	UVOffset       = uint32(unsafe.Offsetof(Vertex{}.UV))
	IndexSize      = uint32(unsafe.Sizeof(uint32(0)))
)

// Mesh is CPU-side triangle geometry.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// VertexBytes returns the size of the vertex data in bytes.
func (m *Mesh) VertexBytes() uint32 {
	return uint32(len(m.Vertices)) * VertexStride
}

// IndexBytes returns the size of the index data in bytes.
func (m *Mesh) IndexBytes() uint32 {
	return uint32(len(m.Indices)) * IndexSize
}

// VertexData views the vertices as raw bytes.
func (m *Mesh) VertexData() []byte {
	if len(m.Vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.Vertices[0])), m.VertexBytes())
}

// IndexData views the indices as raw bytes.
func (m *Mesh) IndexData() []byte {
	if len(m.Indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&m.Indices[0])), m.IndexBytes())
}

// LoadMesh reads a Wavefront OBJ file. Polygons are fan-triangulated and
// every face corner becomes its own vertex. Corners without a texture
// coordinate get UV (0,0). A material library next to the model is read
// when present.
func LoadMesh(path string) (*Mesh, error) {
	objFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMeshNotLoadable, err)
	}
	defer objFile.Close()

	var mtl io.Reader = strings.NewReader("")
	if f, err := os.Open(strings.TrimSuffix(path, ".obj") + ".mtl"); err == nil {
		defer f.Close()
		mtl = f
	}

	dec, err := obj.DecodeReader(objFile, mtl)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMeshNotLoadable, path, err)
	}
	mesh, err := meshFromDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMeshNotLoadable, path, err)
	}
	return mesh, nil
}

func meshFromDecoder(dec *obj.Decoder) (*Mesh, error) {
	positions := len(dec.Vertices) / 3
	uvs := len(dec.Uvs) / 2
	mesh := &Mesh{}
	for _, o := range dec.Objects {
		for _, face := range o.Faces {
			if len(face.Vertices) < 3 {
				continue
			}
			base := uint32(len(mesh.Vertices))
			for i, vi := range face.Vertices {
				if vi < 0 || vi >= positions {
					return nil, fmt.Errorf("face references vertex %d of %d", vi+1, positions)
				}
				v := Vertex{Position: mgl32.Vec3{
					dec.Vertices[vi*3],
					dec.Vertices[vi*3+1],
					dec.Vertices[vi*3+2],
				}}
				if i < len(face.Uvs) {
					if ti := face.Uvs[i]; ti >= 0 && ti < uvs {
						v.UV = mgl32.Vec2{dec.Uvs[ti*2], dec.Uvs[ti*2+1]}
					}
				}
				mesh.Vertices = append(mesh.Vertices, v)
			}
			for i := 2; i < len(face.Vertices); i++ {
				mesh.Indices = append(mesh.Indices, base, base+uint32(i-1), base+uint32(i))
			}
		}
	}
	if len(mesh.Indices) == 0 {
		return nil, errors.New("no faces")
	}
	return mesh, nil
}
