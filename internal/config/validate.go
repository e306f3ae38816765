package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	structRules  *validator.Validate
)

func rules() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		structRules = v
	})
	return structRules
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := rules().Struct(c); err != nil {
		return translateValidation(err)
	}
	if err := c.validateReport(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateReport() error {
	if filepath.Base(c.Report.Filename) != c.Report.Filename {
		return errors.New("report.filename must be a file name, not a path")
	}
	if !strings.EqualFold(filepath.Ext(c.Report.Filename), ".xlsx") {
		return errors.New("report.filename must end in .xlsx")
	}
	return nil
}

func (c *Config) validateStages() error {
	for _, ext := range c.Batch.Extensions {
		if strings.HasSuffix(c.Batch.ContainerExtension, ext) {
			return fmt.Errorf("batch.container_extension %q would be rediscovered as input extension %q", c.Batch.ContainerExtension, ext)
		}
	}
	return nil
}

func translateValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	fe := fieldErrs[0]
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	return fmt.Errorf("%s %s", key, describeRule(fe))
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be set"
	case "gte":
		return "must be >= " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must include at least " + fe.Param() + " entry"
		}
		return "must be >= " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
