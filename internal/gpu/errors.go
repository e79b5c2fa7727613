package gpu

import "errors"

// ErrUnsupportedShaderFormat means the device accepts none of the shader
// binary formats the application ships.
var ErrUnsupportedShaderFormat = errors.New("no supported shader formats available")

// ErrUnsupportedDepthFormat means none of the candidate depth/stencil
// formats can be used as a depth/stencil target.
var ErrUnsupportedDepthFormat = errors.New("no suitable depth stencil format")
