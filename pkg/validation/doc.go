// Package validation checks user-supplied configuration values.
//
// Remote and profile names share one alphabet (letters, digits, hyphen and
// underscore) so they can be used as YAML keys and keyring account names
// without escaping. Struct applies go-playground/validator tags, including
// the custom "name" tag:
//
//	type Profile struct {
//	    Name string `validate:"required,name"`
//	    URL  string `validate:"required,url"`
//	}
//
//	if err := validation.Struct(p); err != nil {
//	    return fmt.Errorf("invalid profile %q: %w", p.Name, err)
//	}
package validation
