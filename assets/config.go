package assets

import "errors"

type Config struct {
	Enabled bool   `koanf:"enabled"`
	Bucket  string `koanf:"bucket"`
	Region  string `koanf:"region"`
	// Endpoint overrides the S3 endpoint, for S3-compatible stores such as MinIO.
	Endpoint string `koanf:"endpoint"`
}

func DefaultConfig() Config {
	return Config{
		Enabled: false,
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Bucket == "" {
		return errors.New("assets.bucket is not configured")
	}
	if c.Region == "" {
		return errors.New("assets.region is not configured")
	}
	return nil
}
