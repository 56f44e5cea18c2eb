package config

/*
 * Latte - Machine configuration
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Memory describes one backing RAM range.
type Memory struct {
	Name  string `toml:"name"`
	Start uint32 `toml:"start"`
	Size  uint32 `toml:"size"`
}

// CPU describes one processor: its quantum, reset PC and whether it is
// released from reset at boot.
type CPU struct {
	Steps int    `toml:"steps"`
	Entry uint32 `toml:"entry"`
	Start bool   `toml:"start"`
}

// Image is one boot image. ELF images carry their own load addresses;
// raw images load at Addr. CPU selects whose reset PC follows the image
// entry point ("arm", "ppc0", "ppc1", "ppc2" or empty).
type Image struct {
	File string `toml:"file"`
	Kind string `toml:"type"`
	Addr uint32 `toml:"addr"`
	CPU  string `toml:"cpu"`
}

// IPC places the mailbox blocks.
type IPC struct {
	Base uint32 `toml:"base"`
}

// Config is the whole machine description.
type Config struct {
	Memory   []Memory `toml:"memory"`
	Starbuck CPU      `toml:"starbuck"`
	Espresso CPU      `toml:"espresso"`
	Cores    int      `toml:"cores"`
	IPC      IPC      `toml:"ipc"`
	Images   []Image  `toml:"image"`
	Debug    bool     `toml:"debug"`
}

// Defaults for fields the file leaves out.
const (
	defaultSteps = 500
	defaultCores = 3
	defaultIPC   = 0x0D800000
)

// Load reads and validates a machine description.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	if len(cfg.Memory) == 0 {
		return fmt.Errorf("no memory ranges defined")
	}
	for i, m := range cfg.Memory {
		if m.Size == 0 {
			return fmt.Errorf("memory range %d has zero size", i)
		}
	}
	if cfg.Starbuck.Steps == 0 {
		cfg.Starbuck.Steps = defaultSteps
	}
	if cfg.Espresso.Steps == 0 {
		cfg.Espresso.Steps = defaultSteps
	}
	if cfg.Cores == 0 {
		cfg.Cores = defaultCores
	}
	if cfg.Cores < 1 || cfg.Cores > 3 {
		return fmt.Errorf("core count %d out of range", cfg.Cores)
	}
	if cfg.IPC.Base == 0 {
		cfg.IPC.Base = defaultIPC
	}
	for i, img := range cfg.Images {
		switch img.Kind {
		case "", "elf", "raw":
		default:
			return fmt.Errorf("image %d has unknown type %q", i, img.Kind)
		}
		switch img.CPU {
		case "", "arm", "ppc0", "ppc1", "ppc2":
		default:
			return fmt.Errorf("image %d has unknown cpu %q", i, img.CPU)
		}
		if img.File == "" {
			return fmt.Errorf("image %d has no file", i)
		}
	}
	return nil
}
