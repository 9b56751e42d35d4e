package registry

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/samirrijal/pqtiles/internal/core/domain"
)

// descriptorFile is the layout of parquet.json:
//
//	{ "datasets": [ { "name": "...", "directory": "...", "lat_col": "...", "lon_col": "..." } ] }
type descriptorFile struct {
	Datasets []domain.DatasetDescriptor `mapstructure:"datasets"`
}

// LoadFile reads a dataset descriptor file. A missing file, malformed JSON,
// or an entry without all four fields is a config error.
func LoadFile(path string) ([]domain.DatasetDescriptor, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrConfig, path, err)
	}
	if !v.IsSet("datasets") {
		return nil, fmt.Errorf("%w: %s: missing \"datasets\" list", domain.ErrConfig, path)
	}

	var f descriptorFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrConfig, path, err)
	}

	if err := validate(f.Datasets); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConfig, path, err)
	}
	return f.Datasets, nil
}

func validate(datasets []domain.DatasetDescriptor) error {
	var errs []string
	for i, ds := range datasets {
		if ds.Name == "" {
			errs = append(errs, fmt.Sprintf("datasets[%d].name is required", i))
		}
		if ds.Directory == "" {
			errs = append(errs, fmt.Sprintf("datasets[%d].directory is required", i))
		}
		if ds.LatColumn == "" {
			errs = append(errs, fmt.Sprintf("datasets[%d].lat_col is required", i))
		}
		if ds.LonColumn == "" {
			errs = append(errs, fmt.Sprintf("datasets[%d].lon_col is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("descriptor validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
