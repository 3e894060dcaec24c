package ibmwas

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var valid = validator.New()

// CustomQuery extends the built-in stat categories with a user-supplied
// one. Stat and MetricPrefix are mandatory; a malformed descriptor is a
// construction-time error for the whole check instance.
type CustomQuery struct {
	Stat         string   `mapstructure:"stat" validate:"required"`
	MetricPrefix string   `mapstructure:"metric_prefix" validate:"required"`
	TagKeys      []string `mapstructure:"tag_keys" validate:"dive,required"`
}

func validateQuery(q CustomQuery) error {
	if err := valid.Struct(q); err != nil {
		return fmt.Errorf("invalid custom query (stat=%q, metric_prefix=%q): %w", q.Stat, q.MetricPrefix, err)
	}
	return nil
}
