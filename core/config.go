package core

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by
// LoadConfiguration.
const EnvPrefix = "KORU_"

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	Instance InstanceConfiguration
	Assets   AssetConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the delay between input polls in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize uint32

	ScreenWidth  uint32
	ScreenHeight uint32

	// Program names the shader program meshes are drawn with
	Program        string
	AcquireTimeout time.Duration
}

// InstanceConfiguration selects the device the engine runs on
type InstanceConfiguration struct {
	DebugMode bool
	Layers    []string

	// Adapter names the preferred adapter
	Adapter    string
	TrackUsage bool
}

// AssetConfiguration locates game data
type AssetConfiguration struct {
	// Path is an asset directory or a kar archive
	Path string
}

// DefaultConfiguration is used for every value the environment
// leaves unset.
var DefaultConfiguration = Configuration{
	Time: TimeConfiguration{
		FramesPerSecond: 60,
		EventPollDelay:  10,
	},
	Renderer: RendererConfiguration{
		SwapchainSize:  3,
		ScreenWidth:    800,
		ScreenHeight:   600,
		Program:        "mesh",
		AcquireTimeout: time.Second,
	},
	Assets: AssetConfiguration{
		Path: "assets",
	},
}

// LoadConfiguration loads the given dotenv files into the environment
// and builds a configuration from KORU_ variables. Without files an
// optional .env in the working directory is read. Variables already
// set in the environment win over the files.
func LoadConfiguration(files ...string) (Configuration, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			return Configuration{}, errors.Wrapf(err, "loading %s", file)
		}
	}
	envy.Reload()

	def := DefaultConfiguration
	var e env
	cfg := Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: e.int("FPS", def.Time.FramesPerSecond),
			EventPollDelay:  e.int("EVENT_POLL_DELAY", def.Time.EventPollDelay),
		},
		Renderer: RendererConfiguration{
			SwapchainSize:  e.uint32("SWAPCHAIN_SIZE", def.Renderer.SwapchainSize),
			ScreenWidth:    e.uint32("SCREEN_WIDTH", def.Renderer.ScreenWidth),
			ScreenHeight:   e.uint32("SCREEN_HEIGHT", def.Renderer.ScreenHeight),
			Program:        e.string("PROGRAM", def.Renderer.Program),
			AcquireTimeout: e.duration("ACQUIRE_TIMEOUT", def.Renderer.AcquireTimeout),
		},
		Instance: InstanceConfiguration{
			DebugMode:  e.bool("DEBUG", def.Instance.DebugMode),
			Layers:     e.list("LAYERS", def.Instance.Layers),
			Adapter:    e.string("ADAPTER", def.Instance.Adapter),
			TrackUsage: e.bool("TRACK_USAGE", def.Instance.TrackUsage),
		},
		Assets: AssetConfiguration{
			Path: e.string("ASSETS", def.Assets.Path),
		},
	}
	if e.err != nil {
		return Configuration{}, e.err
	}
	if cfg.Time.FramesPerSecond < 0 || cfg.Time.EventPollDelay <= 0 {
		return Configuration{}, errors.Newf("core: invalid timing %d fps, %d ms event delay",
			cfg.Time.FramesPerSecond, cfg.Time.EventPollDelay)
	}
	return cfg, nil
}

// env reads prefixed variables, keeping the first parse error.
type env struct {
	err error
}

func (e *env) lookup(key string) (string, bool) {
	value, err := envy.MustGet(EnvPrefix + key)
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

func (e *env) fail(key, value string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "core: %s%s=%q", EnvPrefix, key, value)
	}
}

func (e *env) string(key, def string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return def
}

func (e *env) int(key string, def int) int {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return def
	}
	return n
}

func (e *env) uint32(key string, def uint32) uint32 {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		e.fail(key, value, err)
		return def
	}
	return uint32(n)
}

func (e *env) bool(key string, def bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return def
	}
	return d
}

func (e *env) list(key string, def []string) []string {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	return strings.Split(value, ",")
}
