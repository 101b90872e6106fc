package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func unsetOnCleanup(c *qt.C, keys ...string) {
	c.Cleanup(func() {
		for _, key := range keys {
			os.Unsetenv(EnvPrefix + key)
		}
	})
}

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, DefaultConfiguration)
}

func TestLoadConfigurationFiles(t *testing.T) {
	c := qt.New(t)
	file := filepath.Join(c.TempDir(), "game.env")
	c.Assert(os.WriteFile(file, []byte(
		"KORU_FPS=144\n"+
			"KORU_SCREEN_WIDTH=1280\n"+
			"KORU_ACQUIRE_TIMEOUT=250ms\n"+
			"KORU_LAYERS=VK_LAYER_KHRONOS_validation,VK_LAYER_LUNARG_monitor\n"+
			"KORU_ASSETS=game.kar\n",
	), 0o644), qt.IsNil)
	unsetOnCleanup(c, "FPS", "SCREEN_WIDTH", "ACQUIRE_TIMEOUT", "LAYERS", "ASSETS")

	// The environment wins over files.
	c.Setenv(EnvPrefix+"SCREEN_WIDTH", "1920")
	c.Setenv(EnvPrefix+"DEBUG", "true")

	cfg, err := LoadConfiguration(file)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 144)
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1920))
	c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, DefaultConfiguration.Renderer.ScreenHeight)
	c.Assert(cfg.Renderer.AcquireTimeout, qt.Equals, 250*time.Millisecond)
	c.Assert(cfg.Instance.DebugMode, qt.IsTrue)
	c.Assert(cfg.Instance.Layers, qt.DeepEquals, []string{"VK_LAYER_KHRONOS_validation", "VK_LAYER_LUNARG_monitor"})
	c.Assert(cfg.Assets.Path, qt.Equals, "game.kar")
}

func TestLoadConfigurationErrors(t *testing.T) {
	c := qt.New(t)

	_, err := LoadConfiguration(filepath.Join(c.TempDir(), "missing.env"))
	c.Assert(err, qt.ErrorMatches, "loading .*missing.env: .*")

	c.Setenv(EnvPrefix+"SWAPCHAIN_SIZE", "three")
	_, err = LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, `core: KORU_SWAPCHAIN_SIZE="three": .*`)

	c.Setenv(EnvPrefix+"SWAPCHAIN_SIZE", "")
	c.Setenv(EnvPrefix+"FPS", "-1")
	_, err = LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, "core: invalid timing -1 fps, 10 ms event delay")
}
