package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrInvalidConfig is returned when the provided config is not a pointer to a struct
	// that embeds EnvConfig.
	ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

	// ErrVarNotSet is returned when a required environment variable is not set and has no default.
	ErrVarNotSet = errors.New("env var not set")

	// ErrUnsupportedVarType is returned when trying to parse an environment variable
	// into an unsupported Go type.
	ErrUnsupportedVarType = errors.New("unsupported env var type")
)

//nolint:gochecknoglobals
var durationType = reflect.TypeOf(time.Duration(0))

// EnvConfig is a base type that must be embedded in configuration structs
// to enable environment variable parsing.
type EnvConfig struct {
	namespace string
}

// Namespace returns the prefix the config was parsed with.
func (ec EnvConfig) Namespace() string {
	return ec.namespace
}

// Load reads the given dotenv files into the process environment and then calls Parse.
// Missing files are skipped. Variables already set in the environment take precedence.
func Load(ctx context.Context, cfg any, namespace string, dotenvFiles ...string) error {
	for _, file := range dotenvFiles {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load dotenv %s: %w", file, err)
		}
	}

	return Parse(ctx, cfg, namespace)
}

// Parse loads configuration values from environment variables into the provided struct.
// The struct must embed EnvConfig and use `env` tags to specify variable names.
// Nested structs extend the variable prefix with their `envPrefix` tag.
// For each variable the most specific namespace wins: with namespace "A_B" and tag "X"
// the lookup order is A_B_X, A_X, X.
func Parse(ctx context.Context, cfg any, namespace string) error {
	envConfig, err := findEnvConfig(cfg)
	if err != nil {
		return fmt.Errorf("find env config: %w", err)
	}

	envConfig.namespace = namespace

	return parseStruct(namespace, "", reflect.ValueOf(cfg).Elem())
}

//nolint:varnamelen
func findEnvConfig(cfg any) (*EnvConfig, error) {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	v = v.Elem()
	envConfigType := reflect.TypeOf(EnvConfig{}) //nolint:exhaustruct

	for i := range v.NumField() {
		field := v.Type().Field(i)
		if field.Anonymous && field.Type == envConfigType {
			//nolint:forcetypeassert
			return v.Field(i).Addr().Interface().(*EnvConfig), nil
		}
	}

	return nil, ErrInvalidConfig
}

func parseStruct(namespace, prefix string, v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		value := v.Field(i)

		if !field.IsExported() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := parseStruct(namespace, prefix+field.Tag.Get("envPrefix"), value); err != nil {
				return err
			}

			continue
		}

		if err := parseField(namespace, prefix, field, value); err != nil {
			return fmt.Errorf("parse field %s: %w", field.Name, err)
		}
	}

	return nil
}

func lookupEnv(namespace, name string) (string, bool) {
	nsParts := strings.Split(namespace, "_")

	for i := len(nsParts); i > 0; i-- {
		ns := strings.Join(nsParts[:i], "_")
		if ns != "" {
			ns += "_"
		}

		if value, ok := os.LookupEnv(ns + name); ok {
			return value, true
		}
	}

	return "", false
}

//nolint:cyclop
func parseField(namespace, prefix string, field reflect.StructField, value reflect.Value) error {
	envTag := field.Tag.Get("env")
	if envTag == "" {
		return nil
	}

	raw, ok := lookupEnv(namespace, prefix+envTag)
	if !ok {
		defaultValue, hasDefault := field.Tag.Lookup("default")
		if !hasDefault {
			return fmt.Errorf("%w: %s", ErrVarNotSet, prefix+envTag)
		}

		raw = defaultValue
	}

	if field.Type == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", envTag, err)
		}

		value.SetInt(int64(d))

		return nil
	}

	//nolint:exhaustive
	switch field.Type.Kind() {
	case reflect.String:
		value.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type.Bits())
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", envTag, err)
		}

		value.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type.Bits())
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", envTag, err)
		}

		value.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", envTag, err)
		}

		value.SetBool(b)
	default:
		return fmt.Errorf("%w: %s (%v)", ErrUnsupportedVarType, envTag, field.Type.Kind())
	}

	return nil
}
