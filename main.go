package main

//go:generate glslc -fshader-stage=vertex Content/Shaders/Source/TexturedQuadWithMatrix.vert -o Content/Shaders/Compiled/SPIRV/TexturedQuadWithMatrix.vert.spv
//go:generate glslc -fshader-stage=vertex Content/Shaders/Source/TexturedQuad.vert -o Content/Shaders/Compiled/SPIRV/TexturedQuad.vert.spv
//go:generate glslc -fshader-stage=fragment Content/Shaders/Source/TexturedQuad.frag -o Content/Shaders/Compiled/SPIRV/TexturedQuad.frag.spv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/vulkan-go/glfw/v3.3/glfw"

	"meshspin/internal/config"
	"meshspin/internal/content"
	"meshspin/internal/gpu/vkgpu"
	"meshspin/internal/render"
	"meshspin/internal/window"
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		slog.Error("meshspin failed", "err", err)
		os.Exit(1)
	}
}

func run() (err error) {
	res, err := content.FromExecutable()
	if err != nil {
		return err
	}
	cfg, err := config.Load(res.Config())
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	log.Debug("Configuration loaded", "content", res.Base(), "mesh", cfg.Scene.Mesh,
		"samples", cfg.Scene.SampleCount, "validation", cfg.Validation)

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()
	if !glfw.VulkanSupported() {
		return errors.New("init glfw: Vulkan loader not found")
	}

	win, err := window.New(cfg.Window)
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, err := vkgpu.New(vkgpu.Options{
		Window:     win.GLFW(),
		AppName:    cfg.Window.Title,
		Validation: cfg.Validation,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("create GPU device: %w", err)
	}
	defer dev.Destroy()
	log.Info("GPU device created", "name", dev.DeviceName())

	app, err := render.NewApp(dev, win, res, cfg.Scene, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
