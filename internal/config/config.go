// Package config holds the demo's settings. Defaults reproduce the fixed
// constants of the program; an optional TOML file and the VK_VALIDATION
// environment variable override them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Mesh sources selectable in Scene.Mesh.
const (
	MeshModel = "model"
	MeshQuad  = "quad"
	MeshCube  = "cube"
)

type Config struct {
	LogLevel   string `toml:"log_level"`
	Validation bool   `toml:"validation"` // Vulkan validation layers
	Window     Window `toml:"window"`
	Scene      Scene  `toml:"scene"`
}

type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Scene selects what is drawn and how the pipeline is configured.
type Scene struct {
	Mesh           string `toml:"mesh"`
	Model          string `toml:"model"`
	Texture        string `toml:"texture"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	SampleCount    int    `toml:"sample_count"`
	DepthTarget    bool   `toml:"depth_target"`
	MVPUniform     bool   `toml:"mvp_uniform"`
}

func Default() Config {
	return Config{
		LogLevel:   "info",
		Validation: true,
		Window: Window{
			Title:  "Codotaku Game Engine",
			Width:  800,
			Height: 600,
		},
		Scene: Scene{
			Mesh:           MeshModel,
			Model:          "viking_room.obj",
			Texture:        "viking_room.png",
			VertexShader:   "TexturedQuadWithMatrix.vert",
			FragmentShader: "TexturedQuad.frag",
			SampleCount:    4,
			DepthTarget:    true,
			MVPUniform:     true,
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path, if it
// exists, and with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("open config: %w", err)
	default:
		defer f.Close()
		dec := toml.NewDecoder(f).DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.Validation = validationFromEnv(cfg.Validation)
	return cfg, cfg.Validate()
}

func validationFromEnv(def bool) bool {
	val := os.Getenv("VK_VALIDATION")
	if val == "" {
		return def
	}
	switch val {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Window.Width, c.Window.Height)
	}
	switch c.Scene.Mesh {
	case MeshModel:
		if c.Scene.Model == "" {
			return errors.New("scene.model is required for the model mesh")
		}
	case MeshQuad, MeshCube:
	default:
		return fmt.Errorf("unknown scene.mesh %q", c.Scene.Mesh)
	}
	switch c.Scene.SampleCount {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("invalid scene.sample_count %d", c.Scene.SampleCount)
	}
	if c.Scene.Texture == "" || c.Scene.VertexShader == "" || c.Scene.FragmentShader == "" {
		return errors.New("scene.texture, scene.vertex_shader and scene.fragment_shader are required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return l, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
