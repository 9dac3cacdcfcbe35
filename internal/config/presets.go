package config

import "sort"

// Presets adjust a default config. Kp 4.5 is the stiffer gain the demo was
// also tuned with; short is for quick checks against a running simulator.
var Presets = map[string]func(*Config){
	"default": func(*Config) {},
	"stiff": func(c *Config) {
		c.Kp = 4.5
	},
	"short": func(c *Config) {
		c.Iterations = 500
	},
	"local": func(c *Config) {
		c.Backend = BackendLocal
		c.Iterations = 2000
		c.Report.Every = 100
	},
}

// GetPreset returns a fresh config for name, or nil when it does not exist.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
