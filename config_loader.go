package zoun

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys,
// e.g. ZOUN_ADMIN_PAGESIZE for admin.pageSize.
const EnvPrefix = "ZOUN"

// LoadConfig loads the configuration from an optional YAML file and the environment.
// An empty path searches for zoun-admin.yaml in the working directory; a missing file is not an error
// unless the path was given explicitly.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v, "", reflect.ValueOf(*DefaultConfig()))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("zoun-admin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every leaf of the default configuration so that
// environment overrides resolve for keys absent from the file.
func setDefaults(v *viper.Viper, prefix string, value reflect.Value) {
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		fv := value.Field(i)
		if fv.Kind() == reflect.Struct {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
