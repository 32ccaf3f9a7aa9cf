package cmd

import (
	"fmt"

	"github.com/ifclca/ifcqto/internal/config"
	"github.com/ifclca/ifcqto/internal/geometry"
	"github.com/ifclca/ifcqto/internal/logger"
	"github.com/ifclca/ifcqto/internal/material"
	"github.com/ifclca/ifcqto/internal/model"
	"github.com/ifclca/ifcqto/internal/pipeline"
	"github.com/ifclca/ifcqto/internal/property"
	"github.com/ifclca/ifcqto/internal/record"
	"github.com/ifclca/ifcqto/internal/volume"
)

// loadConfig resolves env/.env settings and applies the persistent flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if lookupPath != "" {
		if cfg.Lookup, err = config.LoadLookup(lookupPath); err != nil {
			return cfg, err
		}
	}
	if logMode != "" {
		cfg.LogMode = logMode
	}
	return cfg, nil
}

// openModel opens the source and rejects an empty element set.
func openModel(path string, log *logger.Logger) (*model.Model, error) {
	m, err := model.Open(path)
	if err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", path, model.ErrEmptySource)
	}
	log.Info("model opened", "path", path, "schema", m.Schema(), "elements", m.Len())
	return m, nil
}

func newProcessor(m *model.Model, cfg config.Config, geometryWorkers int, corr record.Correlation) *pipeline.Processor {
	resolver := volume.NewResolver(geometry.NewEvaluator(geometryWorkers, m.UnitScaleToMeters()))
	resolver.Names = cfg.Lookup.VolumeNames
	return &pipeline.Processor{
		Materials: m,
		Resolver:  resolver,
		Allocator: material.NewAllocator(m),
		Builder:   record.NewBuilder(),
		Properties: property.NewLookup(property.Options{
			Prefix:   cfg.Lookup.PsetPrefix,
			Suffix:   cfg.Lookup.PsetSuffix,
			Fallback: cfg.Lookup.FallbackSets,
		}),
		Loadbearing: cfg.Lookup.Loadbearing,
		External:    cfg.Lookup.External,
		Correlation: corr,
	}
}
