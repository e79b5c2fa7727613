// Package content resolves asset paths under the Content directory.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"meshspin/internal/gpu"
)

// ErrShaderNotFound is returned when no compiled binary exists for a shader
// in the selected format.
var ErrShaderNotFound = errors.New("couldn't open shader file")

const (
	Dir        = "Content"
	modelsDir  = "Models"
	imagesDir  = "Images"
	shadersDir = "Shaders/Compiled"
	ConfigFile = "config.toml"
)

// Resolver maps asset names to files below a base directory.
type Resolver struct {
	base string
}

// New returns a resolver rooted at base, which must contain the Content
// directory.
func New(base string) *Resolver {
	return &Resolver{base: base}
}

// FromExecutable roots the resolver at the directory of the running
// executable. When no Content directory sits there (as with go run), the
// working directory is used instead.
func FromExecutable() (*Resolver, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	if dir := filepath.Dir(exe); hasContent(dir) {
		return New(dir), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return New(wd), nil
}

func hasContent(dir string) bool {
	st, err := os.Stat(filepath.Join(dir, Dir))
	return err == nil && st.IsDir()
}

// Base returns the directory the resolver is rooted at.
func (r *Resolver) Base() string { return r.base }

// Path joins elem below the Content directory.
func (r *Resolver) Path(elem ...string) string {
	return filepath.Join(append([]string{r.base, Dir}, elem...)...)
}

// Model returns the path of a model file.
func (r *Resolver) Model(name string) string {
	return r.Path(modelsDir, name)
}

// Image returns the path of an image file.
func (r *Resolver) Image(name string) string {
	return r.Path(imagesDir, name)
}

// Config returns the path of the optional configuration file.
func (r *Resolver) Config() string {
	return r.Path(ConfigFile)
}

// Shader returns the path of the compiled binary of name in format f,
// e.g. Content/Shaders/Compiled/SPIRV/TexturedQuad.frag.spv.
func (r *Resolver) Shader(name string, f gpu.ShaderFormat) string {
	return r.Path(shadersDir, f.String(), name+f.Extension())
}

// ShaderCode reads the compiled binary of name in format f.
func (r *Resolver) ShaderCode(name string, f gpu.ShaderFormat) ([]byte, error) {
	path := r.Shader(name, f)
	code, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrShaderNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read shader %s: %w", path, err)
	}
	return code, nil
}
