package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/shibukawa/configdir"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/emulator"
)

const (
	CONFIG_VENDOR = "ezrec"
	CONFIG_APP    = "chip8"
	CONFIG_FILE   = "config.toml"
	HISTORY_FILE  = "history"

	COLOR_AUTO   = "auto"
	COLOR_ALWAYS = "always"
	COLOR_NEVER  = "never"
)

// Config is the optional config.toml contents.
//
//	clock_hz = 700
//	color = "auto"
//	preset = "cosmac"
//
//	[quirks]
//	shift_uses_vy = true
type Config struct {
	ClockHz int        `toml:"clock_hz"`
	Color   string     `toml:"color"`  // auto, always or never.
	Preset  string     `toml:"preset"` // Named quirks preset, applied before [quirks].
	Quirks  cpu.Quirks `toml:"quirks"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		ClockHz: emulator.CLOCK_HZ,
		Color:   COLOR_AUTO,
	}
}

// ParseConfig decodes a TOML configuration over the defaults.
func ParseConfig(text string) (config Config, err error) {
	config = DefaultConfig()

	if len(text) == 0 {
		return
	}

	var meta toml.MetaData
	meta, err = toml.Decode(text, &config)
	if err != nil {
		return
	}

	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		err = fmt.Errorf("unknown keys %v", undecoded)
		return
	}

	if len(config.Preset) != 0 {
		preset, ok := cpu.QuirksNamed(config.Preset)
		if !ok {
			err = fmt.Errorf("unknown quirks preset '%v', expected one of %v", config.Preset, cpu.QuirksNames())
			return
		}
		// Booleans set in [quirks] add to the preset.
		config.Quirks = mergeQuirks(preset, config.Quirks)
	}

	switch config.Color {
	case COLOR_AUTO, COLOR_ALWAYS, COLOR_NEVER:
	default:
		err = fmt.Errorf("color must be %v, %v or %v", COLOR_AUTO, COLOR_ALWAYS, COLOR_NEVER)
		return
	}

	if config.ClockHz < 1 {
		err = fmt.Errorf("clock_hz must be positive")
		return
	}

	return
}

func mergeQuirks(a, b cpu.Quirks) cpu.Quirks {
	return cpu.Quirks{
		ShiftUsesVy:          a.ShiftUsesVy || b.ShiftUsesVy,
		LoadStoreIncrementsI: a.LoadStoreIncrementsI || b.LoadStoreIncrementsI,
		JumpUsesVx:           a.JumpUsesVx || b.JumpUsesVx,
		LogicResetsVF:        a.LogicResetsVF || b.LogicResetsVF,
		WrapSprites:          a.WrapSprites || b.WrapSprites,
	}
}

// LoadConfig reads the configuration from path, or if path is empty, from
// the first config.toml found in the user's configuration folders.
func LoadConfig(path string) (config Config, err error) {
	var data []byte

	if len(path) != 0 {
		data, err = os.ReadFile(path)
		if err != nil {
			return
		}
	} else {
		dirs := configdir.New(CONFIG_VENDOR, CONFIG_APP)
		folder := dirs.QueryFolderContainsFile(CONFIG_FILE)
		if folder != nil {
			path = folder.Path
			data, err = folder.ReadFile(CONFIG_FILE)
			if err != nil {
				return
			}
		}
	}

	config, err = ParseConfig(string(data))
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
		return
	}

	return
}

// HistoryPath returns the REPL history file in the user's cache folder,
// or an empty string if there is none.
func HistoryPath() string {
	dirs := configdir.New(CONFIG_VENDOR, CONFIG_APP)
	cache := dirs.QueryCacheFolder()
	if err := cache.MkdirAll(); err != nil {
		return ""
	}

	return filepath.Join(cache.Path, HISTORY_FILE)
}

// UseColor decides whether to colour output to file.
func UseColor(mode string, file *os.File) bool {
	switch mode {
	case COLOR_ALWAYS:
		return true
	case COLOR_NEVER:
		return false
	}

	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Stdout returns a writer for stdout that handles ANSI colour sequences,
// translating or stripping them as the platform requires.
func Stdout(color bool) io.Writer {
	if color {
		return colorable.NewColorableStdout()
	}
	return colorable.NewNonColorable(os.Stdout)
}
