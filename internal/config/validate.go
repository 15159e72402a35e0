package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldError(verrs[0])
		}
		return err
	}
	if strings.HasPrefix(cfg.Model.Path, "gs://") && strings.Count(strings.TrimPrefix(cfg.Model.Path, "gs://"), "/") == 0 {
		return fmt.Errorf("model.path %q must name an object (gs://bucket/object)", cfg.Model.Path)
	}
	return nil
}

// fieldError renders a validator error with the yaml key path, e.g.
// "server.addr".
func fieldError(fe validator.FieldError) error {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		parts[i] = yamlKey(p)
	}
	key := strings.Join(parts, ".")
	if strings.HasPrefix(key, "server.api_keys") {
		return fmt.Errorf("%s failed %s", key, fe.Tag())
	}
	if fe.Param() != "" {
		return fmt.Errorf("%s failed %s=%s (got %v)", key, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("%s failed %s (got %v)", key, fe.Tag(), fe.Value())
}

var yamlKeys = map[string]string{
	"LibraryPath":  "library_path",
	"CacheDir":     "cache_dir",
	"SHA256":       "sha256",
	"GCSEndpoint":  "gcs_endpoint",
	"MaxBodyBytes": "max_body_bytes",
	"APIKeys":      "api_keys",
}

func yamlKey(field string) string {
	name, index, _ := strings.Cut(field, "[")
	if k, ok := yamlKeys[name]; ok {
		name = k
	} else {
		name = strings.ToLower(name)
	}
	if index != "" {
		return name + "[" + index
	}
	return name
}
