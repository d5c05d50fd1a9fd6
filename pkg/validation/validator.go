package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	mobilePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	s3URIPattern  = regexp.MustCompile(`^s3://[a-z0-9][a-z0-9.-]*/.+$`)
)

func init() {
	validate = validator.New()

	// Tag names in errors come from the json tag, not the Go field name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("transaction_status", validateTransactionStatus)
	_ = validate.RegisterValidation("indian_mobile", validateIndianMobile)
	_ = validate.RegisterValidation("ingest_uri", validateIngestURI)
}

// ValidateStruct validates a struct against its validate tags and returns a
// field-keyed ValidationError on failure.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(errs)
		}
		return err
	}
	return nil
}

func validateTransactionStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "Success", "Failed":
		return true
	default:
		return false
	}
}

func validateIndianMobile(fl validator.FieldLevel) bool {
	return mobilePattern.MatchString(fl.Field().String())
}

// validateIngestURI accepts s3://bucket/key URIs or plain filesystem paths.
// Any other scheme is rejected.
func validateIngestURI(fl validator.FieldLevel) bool {
	uri := fl.Field().String()
	if uri == "" {
		return false
	}
	if strings.Contains(uri, "://") {
		return s3URIPattern.MatchString(uri)
	}
	return true
}
