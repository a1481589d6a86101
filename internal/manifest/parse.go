package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const packageJSONName = "package.json"

// Parse reads and decodes the package.json in dir, returning a Package with
// a fully built position index for later diagnostics.
//
// Parse never validates wireit semantics (script existence, cycles,
// dependency shapes beyond raw JSON typing) — that is the Analyzer's job.
// It only rejects malformed JSON and scripts/wireit fields that are present
// but not objects.
func Parse(dir string) (*Package, error) {
	file := filepath.Join(dir, packageJSONName)
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingPackageJSONError{Dir: dir}
		}
		return nil, &MissingPackageJSONError{Dir: dir}
	}

	var raw rawPackageJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, &InvalidPackageJSONError{Pos: Position{File: file}, Err: err}
	}

	idx := buildOffsetIndex(file, data)

	pkg := &Package{
		Dir:       dir,
		File:      file,
		Scripts:   map[string]string{},
		Wireit:    map[string]RawWireitConfig{},
		positions: idx,
	}

	for name := range raw.Dependencies {
		pkg.Dependencies = append(pkg.Dependencies, name)
	}
	for name := range raw.DevDependencies {
		pkg.DevDependencies = append(pkg.DevDependencies, name)
	}

	if len(raw.Scripts) > 0 {
		var scripts map[string]string
		if err := json.Unmarshal(raw.Scripts, &scripts); err != nil {
			return nil, &InvalidConfigShapeError{
				Pos:   idx.positionFor(file, "scripts"),
				Field: "scripts",
			}
		}
		pkg.Scripts = scripts
	}

	if len(raw.Wireit) > 0 {
		var wireit map[string]json.RawMessage
		if err := json.Unmarshal(raw.Wireit, &wireit); err != nil {
			return nil, &InvalidConfigShapeError{
				Pos:   idx.positionFor(file, "wireit"),
				Field: "wireit",
			}
		}
		for name, body := range wireit {
			cfg, err := parseWireitEntry(file, idx, name, body)
			if err != nil {
				return nil, err
			}
			pkg.Wireit[name] = cfg
		}
	}

	return pkg, nil
}

type rawDependencyJSON struct {
	isString bool
	str      string
	Script   string `json:"script"`
	Cascade  *bool  `json:"cascade"`
}

func (r *rawDependencyJSON) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.isString = true
		r.str = s
		return nil
	}
	type alias rawDependencyJSON
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = rawDependencyJSON(a)
	return nil
}

type rawEnvEntryJSON struct {
	isString bool
	str      string
	External bool    `json:"external"`
	Default  *string `json:"default"`
}

func (r *rawEnvEntryJSON) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.isString = true
		r.str = s
		return nil
	}
	type alias rawEnvEntryJSON
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = rawEnvEntryJSON(a)
	return nil
}

type rawWireitEntryJSON struct {
	Command                  *string                    `json:"command"`
	Dependencies              []rawDependencyJSON        `json:"dependencies"`
	Files                     *[]string                  `json:"files"`
	Output                    *[]string                  `json:"output"`
	Clean                     json.RawMessage            `json:"clean"`
	Service                   json.RawMessage            `json:"service"`
	Env                       map[string]rawEnvEntryJSON `json:"env"`
	PackageLocks              *[]string                  `json:"packageLocks"`
	AllowUsuallyExcludedPaths bool                        `json:"allowUsuallyExcludedPaths"`
}

func parseWireitEntry(file string, idx offsetIndex, name string, body json.RawMessage) (RawWireitConfig, error) {
	base := joinPath("wireit", name)
	pos := idx.positionFor(file, base)

	var raw rawWireitEntryJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return RawWireitConfig{}, &InvalidConfigShapeError{Pos: pos, Field: base}
	}

	cfg := RawWireitConfig{
		Pos:                       pos,
		AllowUsuallyExcludedPaths: raw.AllowUsuallyExcludedPaths,
	}

	if raw.Command != nil {
		cfg.Command = raw.Command
		cfg.HasCommand = true
	}

	for i, d := range raw.Dependencies {
		depPos := idx.positionFor(file, fmt.Sprintf("%s.dependencies.%d", base, i))
		dep := RawDependency{Pos: depPos}
		if d.isString {
			dep.Script = d.str
		} else {
			dep.Script = d.Script
			if d.Cascade != nil {
				dep.Cascade = *d.Cascade
				dep.HasCascade = true
			}
		}
		cfg.Dependencies = append(cfg.Dependencies, dep)
	}

	if raw.Files != nil {
		cfg.Files = *raw.Files
		cfg.HasFiles = true
	}
	if raw.Output != nil {
		cfg.Output = *raw.Output
		cfg.HasOutput = true
	}
	if raw.PackageLocks != nil {
		cfg.PackageLocks = *raw.PackageLocks
		cfg.HasPackageLocks = true
	}

	if len(raw.Clean) > 0 {
		var s string
		if err := json.Unmarshal(raw.Clean, &s); err == nil {
			cfg.Clean = &s
			cfg.HasClean = true
		} else {
			var b bool
			if err := json.Unmarshal(raw.Clean, &b); err == nil {
				v := "false"
				if b {
					v = "true"
				}
				cfg.Clean = &v
				cfg.HasClean = true
			} else {
				return RawWireitConfig{}, &InvalidConfigShapeError{
					Pos:   idx.positionFor(file, base+".clean"),
					Field: base + ".clean",
				}
			}
		}
	}

	if len(raw.Service) > 0 {
		var b bool
		if err := json.Unmarshal(raw.Service, &b); err == nil {
			cfg.Service = b
			cfg.HasService = true
		} else {
			cfg.Service = true
			cfg.HasService = true
			cfg.ServiceIsObject = true
		}
	}

	if len(raw.Env) > 0 {
		cfg.Env = make(map[string]RawEnvEntry, len(raw.Env))
		for k, v := range raw.Env {
			entryPos := idx.positionFor(file, fmt.Sprintf("%s.env.%s", base, k))
			entry := RawEnvEntry{Pos: entryPos}
			if v.isString {
				entry.Literal = v.str
			} else {
				entry.External = v.External
				if v.Default != nil {
					entry.Default = *v.Default
					entry.HasDefault = true
				}
			}
			cfg.Env[k] = entry
		}
	}

	return cfg, nil
}
