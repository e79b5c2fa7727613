package asset

import (
	"os"
	"path/filepath"
	"testing"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# quad with texture coordinates
o quad
v -0.5 -0.5 0
v 0.5 -0.5 0
v 0.5 0.5 0
v -0.5 0.5 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
f 1 2 3
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint32(20), VertexStride)
	assert.Equal(t, uint32(0), PositionOffset)
	assert.Equal(t, uint32(12), UVOffset)
	assert.Equal(t, uint32(4), IndexSize)
}

func TestLoadMeshTriangulatesPerCorner(t *testing.T) {
	mesh, err := LoadMesh(writeFile(t, "quad.obj", quadOBJ))
	require.NoError(t, err)

	// 4 corners of the quad face and 3 of the triangle.
	require.Len(t, mesh.Vertices, 7)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6}, mesh.Indices)

	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0}, mesh.Vertices[2].Position)
	assert.Equal(t, mgl32.Vec2{1, 1}, mesh.Vertices[2].UV)

	for _, v := range mesh.Vertices[4:] {
		assert.Equal(t, mgl32.Vec2{}, v.UV, "corners without vt default to (0,0)")
	}
}

func TestLoadMeshErrors(t *testing.T) {
	_, err := LoadMesh(filepath.Join(t.TempDir(), "missing.obj"))
	assert.ErrorIs(t, err, ErrMeshNotLoadable)

	_, err = LoadMesh(writeFile(t, "empty.obj", "v 0 0 0\n"))
	assert.ErrorIs(t, err, ErrMeshNotLoadable)

	_, err = LoadMesh(writeFile(t, "bad.obj", "v 0 0 0\nf 1 2 3\n"))
	assert.ErrorIs(t, err, ErrMeshNotLoadable)
}

func TestMeshBytes(t *testing.T) {
	m := Quad()
	assert.Equal(t, uint32(4*20), m.VertexBytes())
	assert.Equal(t, uint32(6*4), m.IndexBytes())
	assert.Len(t, m.VertexData(), 80)
	assert.Len(t, m.IndexData(), 24)

	empty := &Mesh{}
	assert.Nil(t, empty.VertexData())
	assert.Nil(t, empty.IndexData())
}

func TestBuiltinMeshes(t *testing.T) {
	q := Quad()
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, q.Indices)
	assert.Equal(t, mgl32.Vec3{-0.5, -0.5, 0}, q.Vertices[0].Position)
	assert.Equal(t, mgl32.Vec3{-0.5, 0.5, 0}, q.Vertices[3].Position)

	c := Cube()
	assert.Len(t, c.Vertices, 24)
	assert.Len(t, c.Indices, 36)
	for _, i := range c.Indices {
		assert.Less(t, i, uint32(24))
	}
}
