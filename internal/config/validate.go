package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/raphi011/orgcmp/internal/selection"
)

func init() {
	// Error keys follow the TOML keys.
	validation.ErrorTag = "toml"
}

// Validate checks value ranges and enums.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.CacheDir, validation.Required),
		validation.Field(&c.WorkDir, validation.Required),
		validation.Field(&c.MaxFiles,
			validation.Required,
			validation.Min(selection.MinFiles),
			validation.Max(selection.HardMaxFiles),
		),
		validation.Field(&c.CLI, validation.Required),
		validation.Field(&c.RetrieveTimeout, validation.By(positiveDuration)),
		validation.Field(&c.Metadata, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.RefreshConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.FetchConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.Theme),
	)
}

// Validate implements validation.Validatable.
func (t ThemeConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Name, validation.In(anySlice(ValidThemeNames)...).
			Error("must be "+formatOptions(ValidThemeNames))),
		validation.Field(&t.Mode, validation.In(anySlice(ValidThemeModes)...).
			Error("must be "+formatOptions(ValidThemeModes))),
	)
}

func positiveDuration(value any) error {
	d, _ := value.(Duration)
	if d.Duration <= 0 {
		return errors.New("must be a positive duration")
	}
	return nil
}

// isValidThemeName reports whether name is a known theme preset.
func isValidThemeName(name string) bool {
	return slices.Contains(ValidThemeNames, name)
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// formatOptions formats a list of allowed values for error messages.
// E.g., ["a", "b", "c"] -> `"a", "b", or "c"`
func formatOptions(opts []string) string {
	quoted := make([]string, len(opts))
	for i, o := range opts {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	if len(quoted) <= 2 {
		return strings.Join(quoted, " or ")
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
}
