package asset

import mgl32 "github.com/go-gl/mathgl/mgl32"

// Quad returns a unit quad in the XY plane facing +Z.
func Quad() *Mesh {
	return &Mesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-0.5, -0.5, 0}, UV: mgl32.Vec2{0, 1}},
			{Position: mgl32.Vec3{0.5, -0.5, 0}, UV: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{0.5, 0.5, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{-0.5, 0.5, 0}, UV: mgl32.Vec2{0, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// cubeFaces lists the four corners of each face, counter-clockwise seen
// from outside.
var cubeFaces = [6][4]mgl32.Vec3{
	{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}},     // front
	{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}, // back
	{{-0.5, -0.5, -0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}}, // left
	{{0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}},     // right
	{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}},     // top
	{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}}, // bottom
}

// Cube returns a unit cube with the whole texture mapped on every face.
func Cube() *Mesh {
	uvs := [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	m := &Mesh{}
	for _, face := range cubeFaces {
		base := uint32(len(m.Vertices))
		for i, p := range face {
			m.Vertices = append(m.Vertices, Vertex{Position: p, UV: uvs[i]})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}
