// Package config resolves run settings from the environment, an optional
// .env file and an optional YAML lookup file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Lookup lists the property names and property sets recognized for the
// element flags. Alias lists are tried in order.
type Lookup struct {
	PsetPrefix   string   `yaml:"pset_prefix"`
	PsetSuffix   string   `yaml:"pset_suffix"`
	FallbackSets []string `yaml:"fallback_sets"`
	Loadbearing  []string `yaml:"loadbearing"`
	External     []string `yaml:"external"`
	VolumeNames  []string `yaml:"volume_names"`
}

// DefaultLookup covers the spellings seen in exported models.
func DefaultLookup() Lookup {
	return Lookup{
		PsetPrefix:   "Pset_",
		PsetSuffix:   "Common",
		FallbackSets: []string{"Pset_ElementCommon"},
		Loadbearing:  []string{"LoadBearing", "IsLoadbearing"},
		External:     []string{"IsExternal"},
		VolumeNames:  []string{"NetVolume", "GrossVolume"},
	}
}

type Config struct {
	DatabaseURL     string
	MongoDatabase   string
	MongoCollection string
	BatchSize       int
	Workers         int
	GeometryWorkers int
	LogMode         string
	Lookup          Lookup
}

// Load reads the .env file in the working directory when present and
// resolves the configuration from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv resolves the configuration from the process environment only.
func FromEnv() Config {
	return Config{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MongoDatabase:   String("IFCQTO_MONGO_DATABASE", "IfcLCAdata_01"),
		MongoCollection: String("IFCQTO_MONGO_COLLECTION", "building_elements"),
		BatchSize:       Int("IFCQTO_BATCH_SIZE", 500),
		Workers:         Int("IFCQTO_WORKERS", 0),
		GeometryWorkers: Int("IFCQTO_GEOMETRY_WORKERS", 0),
		LogMode:         String("LOG_MODE", "dev"),
		Lookup:          DefaultLookup(),
	}
}

// LoadLookup reads a YAML lookup file. Keys missing from the file keep
// their defaults.
func LoadLookup(path string) (Lookup, error) {
	l := DefaultLookup()
	data, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("read lookup config: %w", err)
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("parse lookup config %s: %w", path, err)
	}
	if len(l.VolumeNames) == 0 {
		return l, fmt.Errorf("lookup config %s: volume_names must not be empty", path)
	}
	return l, nil
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func String(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}
