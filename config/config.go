// Package config reads and writes the player's key = value settings file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName is the settings file inside the config directory.
const FileName = "player.conf"

// Settings are the persistent defaults. Command-line flags override them.
type Settings struct {
	Glyph           string
	Status          bool
	Loop            bool
	Mute            bool
	Volume          float64
	ToleranceHighMs int // -1 means one frame period
	ToleranceDropMs int // -1 means two frame periods
	BufferFrames    int
	AudioQueue      int
	Decoder         string
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Glyph:           "block",
		Volume:          1,
		ToleranceHighMs: -1,
		ToleranceDropMs: -1,
		BufferFrames:    30,
		AudioQueue:      64,
		Decoder:         "ffmpeg",
	}
}

// Dir returns the default config directory, $XDG_CONFIG_HOME/termplay.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "termplay"), nil
}

// DefaultPath returns the settings file in the default config directory.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Ensure writes the default settings to path unless a file already exists.
func Ensure(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	return Write(path, Default())
}

// Load reads path over the defaults. A missing file yields the defaults;
// values that do not parse are reported and the default kept.
func Load(path string) (Settings, error) {
	s := Default()

	conf, err := parseConf(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}

	var bad []string
	str := func(key string, dst *string) {
		if v, ok := conf[key]; ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := conf[key]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				bad = append(bad, key)
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := conf[key]; ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				bad = append(bad, key)
				return
			}
			*dst = n
		}
	}

	tolerance := func(key string, dst *int) {
		if v, ok := conf[key]; ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < -1 {
				bad = append(bad, key)
				return
			}
			*dst = n
		}
	}

	str("glyph", &s.Glyph)
	str("decoder", &s.Decoder)
	boolean("status", &s.Status)
	boolean("loop", &s.Loop)
	boolean("mute", &s.Mute)
	tolerance("tolerance_high_ms", &s.ToleranceHighMs)
	tolerance("tolerance_drop_ms", &s.ToleranceDropMs)
	integer("buffer_frames", &s.BufferFrames)
	integer("audio_queue", &s.AudioQueue)
	if v, ok := conf["volume"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			s.Volume = f
		} else {
			bad = append(bad, "volume")
		}
	}

	if len(bad) > 0 {
		return s, fmt.Errorf("%s: invalid value for %s", path, strings.Join(bad, ", "))
	}
	return s, nil
}

// Write saves s to path.
func Write(path string, s Settings) error {
	var b strings.Builder
	b.WriteString("# termplay config\n\n")
	b.WriteString("# block or half\n")
	b.WriteString(fmt.Sprintf("glyph = %s\n", s.Glyph))
	b.WriteString(fmt.Sprintf("status = %t\n", s.Status))
	b.WriteString(fmt.Sprintf("loop = %t\n", s.Loop))
	b.WriteString(fmt.Sprintf("mute = %t\n", s.Mute))
	b.WriteString(fmt.Sprintf("volume = %s\n", strconv.FormatFloat(s.Volume, 'g', -1, 64)))
	b.WriteString("\n# sync tolerances in milliseconds, -1 derives them from the frame rate\n")
	b.WriteString(fmt.Sprintf("tolerance_high_ms = %d\n", s.ToleranceHighMs))
	b.WriteString(fmt.Sprintf("tolerance_drop_ms = %d\n", s.ToleranceDropMs))
	b.WriteString("\n# queue sizes in frames and audio chunks\n")
	b.WriteString(fmt.Sprintf("buffer_frames = %d\n", s.BufferFrames))
	b.WriteString(fmt.Sprintf("audio_queue = %d\n", s.AudioQueue))
	b.WriteString(fmt.Sprintf("decoder = %s\n", s.Decoder))
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func parseConf(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			result[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return result, scanner.Err()
}
