package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/koru3d/koru/asset"
	"github.com/koru3d/koru/core"
	"github.com/koru3d/koru/gfx"
	"github.com/koru3d/koru/gfx/vkr"
	"github.com/koru3d/koru/render"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	verbose      = flag.Bool("v", false, "Log debug messages")
)

func newWindow(cfg core.RendererConfiguration) *sdl.Window {
	window, err := sdl.CreateWindow("Koru3D",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		log.WithError(err).Fatal("window creation failed")
	}
	return window
}

// pollEvents drains the SDL queue and reports whether to keep running.
func pollEvents() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.KeyboardEvent:
			if et.Keysym.Sym == sdl.K_ESCAPE {
				return false
			}
		case *sdl.QuitEvent:
			return false
		}
	}
	return true
}

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	configuration, err := core.LoadConfiguration(flag.Args()...)
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	if *debug {
		configuration.Instance.DebugMode = true
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.WithError(err).Fatal("cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.WithError(err).Fatal("cpu profile")
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			log.WithError(err).Fatal("trace")
		}
		if err := trace.Start(f); err != nil {
			log.WithError(err).Fatal("trace")
		}
		defer trace.Stop()
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		log.WithError(err).Fatal("sdl init")
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		log.WithError(err).Fatal("vulkan library")
	}
	defer sdl.VulkanUnloadLibrary()

	window := vkr.Window{Window: newWindow(configuration.Renderer)}
	defer window.Destroy()
	log.AddHook(&messageBoxHook{window: window.Window})

	backend, err := vkr.New(window.Configure(vkr.Config{
		Debug:  configuration.Instance.DebugMode,
		Layers: configuration.Instance.Layers,
		Logger: log.StandardLogger(),
	}))
	if err != nil {
		log.WithError(err).Fatal("vulkan backend")
	}

	instance, err := gfx.NewInstance(backend, gfx.InstanceConfig{
		Logger: log.StandardLogger(),
		Debug:  configuration.Instance.DebugMode,
	})
	if err != nil {
		log.WithError(err).Fatal("vulkan instance")
	}
	defer instance.Destroy()

	device := instance.CreateDevice(
		instance.SelectAdapter(configuration.Instance.Adapter),
		gfx.DeviceConfig{TrackUsage: configuration.Instance.TrackUsage},
	)
	defer device.Release()
	log.WithField("adapter", device.Adapter().Name).Info("device created")

	shaders, err := render.LoadShaders(device, packr.NewBox("../../assets/shaders"))
	if err != nil {
		log.WithError(err).Fatal("shaders")
	}
	defer shaders.Release()
	program, ok := shaders[configuration.Renderer.Program]
	if !ok {
		log.WithField("program", configuration.Renderer.Program).Fatal("shader program not found")
	}

	source, err := asset.OpenSource(configuration.Assets.Path)
	if err != nil {
		log.WithError(err).Fatal("assets")
	}
	loader := asset.NewLoader(source, log.StandardLogger())
	defer loader.Close()

	renderer, err := render.New(device, render.Config{
		Window:         window,
		Program:        program,
		FrameCount:     configuration.Renderer.SwapchainSize,
		ClearColor:     [4]float32{0.02, 0.02, 0.05, 1},
		AcquireTimeout: configuration.Renderer.AcquireTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("renderer")
	}
	defer renderer.Release()

	world := loadScene(device, loader)
	defer world.release()

	timeService := core.NewTime(configuration.Time)
	defer timeService.Stop()

	loop := core.GameLoop{
		Time:   timeService,
		Log:    log.StandardLogger(),
		Input:  pollEvents,
		Update: world.update,
		Render: func() error { return renderer.RunFrame(world) },
	}
	if err := loop.Run(context.Background()); err != nil {
		log.WithError(err).Error("game loop")
	}
	log.WithField("stats", renderer.Stats()).Info("exiting")

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.WithError(err).Fatal("memory profile")
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.WithError(err).Fatal("memory profile")
		}
	}
}
