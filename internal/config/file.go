package config

// This file implements the config-file loader. The format is the plain
// program-options syntax: "key=value" per line, '#' comments, optional
// "[section]" headers that prefix the following keys with "section.".

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// fileKey binds a config-file key to the Config field it sets.
type fileKey struct {
	name string
	set  func(cfg *Config, raw string) error
}

var fileKeys = []fileKey{
	{"input_dir", stringSetter(func(c *Config) *string { return &c.InputDir })},
	{"output_dir", stringSetter(func(c *Config) *string { return &c.OutputDir })},
	{"depth", intSetter(func(c *Config) *int { return &c.Options.Depth })},
	{"color", floatSetter(func(c *Config) *float64 { return &c.Options.Color })},
	{"trim", floatSetter(func(c *Config) *float64 { return &c.Options.Trim })},
	{"num_threads", intSetter(func(c *Config) *int { return &c.Options.NumThreads })},
	{"point_weight", floatSetter(func(c *Config) *float64 { return &c.Options.PointWeight })},
	{"parallel", boolSetter(func(c *Config) *bool { return &c.Parallel })},
	{"extension", stringSetter(func(c *Config) *string { return &c.Extension })},
	{"recon_bin", stringSetter(func(c *Config) *string { return &c.ReconBin })},
	{"trim_bin", stringSetter(func(c *Config) *string { return &c.TrimBin })},
	{"skip_existing", boolSetter(func(c *Config) *bool { return &c.SkipExisting })},
	{"fail_on_error", boolSetter(func(c *Config) *bool { return &c.FailOnError })},
	{"mesh_stats", boolSetter(func(c *Config) *bool { return &c.MeshStats })},
	{"ledger", stringSetter(func(c *Config) *string { return &c.LedgerPath })},
	{"log_file", stringSetter(func(c *Config) *string { return &c.LogFile })},
}

// LoadFile opens path and applies its keys to cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open config file %s: %w", path, err)
	}
	defer f.Close()

	if err := Parse(f, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	cfg.ConfigFile = path
	return nil
}

// Parse reads key=value lines from r into cfg. Unknown keys, repeated keys,
// malformed lines and values that do not parse as the key's type are
// errors; nothing is partially applied when an error is returned.
func Parse(r io.Reader, cfg *Config) error {
	staged := *cfg
	seen := make(map[string]int)
	section := ""

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return fmt.Errorf("line %d: invalid section header %q", lineNo, line)
			}
			section = strings.TrimSpace(line[1 : len(line)-1])
			if section != "" {
				section += "."
			}
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return fmt.Errorf("line %d: invalid syntax %q (expected key=value)", lineNo, line)
		}
		name := section + strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if name == section {
			return fmt.Errorf("line %d: missing option name", lineNo)
		}

		key, ok := lookupKey(name)
		if !ok {
			return fmt.Errorf("line %d: unrecognised option '%s'", lineNo, name)
		}
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("line %d: option '%s' cannot be specified more than once (first set on line %d)", lineNo, name, prev)
		}
		seen[name] = lineNo

		if err := key.set(&staged, value); err != nil {
			return fmt.Errorf("line %d: the argument ('%s') for option '%s' is invalid: %w", lineNo, value, name, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	*cfg = staged
	return nil
}

func lookupKey(name string) (fileKey, bool) {
	for _, k := range fileKeys {
		if k.name == name {
			return k, true
		}
	}
	return fileKey{}, false
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*field(c) = raw
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, raw string) error {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("not a whole number")
		}
		*field(c) = n
		return nil
	}
}

func floatSetter(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, raw string) error {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("not a number")
		}
		*field(c) = f
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// parseBool accepts the program-options spellings in addition to Go's.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean (use true/false, yes/no, on/off, 1/0)")
}
