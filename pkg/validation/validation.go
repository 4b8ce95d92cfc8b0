package validation

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vinodismyname/biofarmaka/pkg/pagination"
)

var (
	v      *validator.Validate
	vOnce  sync.Once
	nameRe = regexp.MustCompile(`^[^\p{Cc}]{1,128}$`)
)

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	vOnce.Do(func() {
		v = validator.New()
		// Custom: positive year; presence in the data is checked by the engine
		_ = v.RegisterValidation("year", func(fl validator.FieldLevel) bool {
			return fl.Field().Int() > 0
		})
		// Custom: region or crop selector; any printable name up to 128 characters
		_ = v.RegisterValidation("selector", func(fl validator.FieldLevel) bool {
			return nameRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		// Custom: table name for previews
		_ = v.RegisterValidation("table_name", func(fl validator.FieldLevel) bool {
			switch pagination.Table(strings.TrimSpace(fl.Field().String())) {
			case pagination.TableWide, pagination.TableClusters, pagination.TableRecords:
				return true
			}
			return false
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	err := Validator().Struct(s)
	if err == nil {
		return ""
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "VALIDATION: invalid inputs"
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("VALIDATION: %s is required", field)
	case "required_without":
		return fmt.Sprintf("VALIDATION: %s is required (or supply cursor)", field)
	case "year":
		return fmt.Sprintf("VALIDATION: %s must be a positive year", field)
	case "selector":
		return fmt.Sprintf("VALIDATION: %s must be 1-128 characters without control characters", field)
	case "table_name":
		return "VALIDATION: table must be one of wide, clusters, records"
	case "cursor":
		return "CURSOR_INVALID: failed to decode cursor; restart pagination"
	case "oneof":
		return fmt.Sprintf("VALIDATION: %s must be one of %s", field, fe.Param())
	case "min", "max", "gte", "lte":
		return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("VALIDATION: invalid %s", field)
}
