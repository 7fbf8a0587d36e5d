package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// FieldError is one entry of details.fields in a validation_failed response.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var registerOnce sync.Once

// RegisterValidators teaches gin's validator the profile rules and makes it
// report fields by their JSON names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(wireName)

		_ = v.RegisterValidation("alphaspace", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.TrimSpace(s) != "" && !strings.ContainsFunc(s, func(r rune) bool {
				return !unicode.IsLetter(r) && r != ' '
			})
		})

		_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s != "" && !strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
		})

		_ = v.RegisterValidation("hasdigit", func(fl validator.FieldLevel) bool {
			return strings.ContainsFunc(fl.Field().String(), unicode.IsDigit)
		})
	})
}

func wireName(sf reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(sf.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}

// BindJSON decodes and validates a JSON body, answering the request itself
// when that fails.
func BindJSON(ctx *gin.Context, out any) bool {
	fields, ok := bindWith(ctx, out, binding.JSON)
	if !ok {
		return false
	}
	if len(fields) > 0 {
		RespondValidation(ctx, fields)
		return false
	}
	return true
}

// bindWith binds the body into out. A body that cannot be decoded is
// answered with 400 and ok=false. Rule violations are returned instead so
// the caller can merge in its own findings.
func bindWith(ctx *gin.Context, out any, b binding.Binding) ([]FieldError, bool) {
	RegisterValidators()

	err := ctx.ShouldBindWith(out, b)
	if err == nil {
		return nil, true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe.Tag(), fe.Param()),
			})
		}
		return fields, true
	}

	RespondBadRequest(ctx, "Invalid request body", decodeErrorDetails(err))
	return nil, false
}

// bindingFor accepts multipart, urlencoded and JSON bodies.
func bindingFor(ctx *gin.Context) binding.Binding {
	switch ctx.ContentType() {
	case binding.MIMEJSON:
		return binding.JSON
	case binding.MIMEMultipartPOSTForm:
		return binding.FormMultipart
	default:
		return binding.Form
	}
}

func decodeErrorDetails(err error) gin.H {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return gin.H{"json": "invalid_json_syntax", "offset": syntaxErr.Offset}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: "must be of type " + typeErr.Type.String(),
			}},
		}
	}

	if errors.Is(err, io.EOF) {
		return gin.H{"json": "empty_body"}
	}

	return gin.H{"reason": err.Error()}
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "alphaspace":
		return "must contain only letters and spaces"
	case "digits":
		return "must contain only digits"
	case "hasdigit":
		return "must contain at least one number"
	}

	if param != "" {
		return fmt.Sprintf("failed %s validation (%s)", rule, param)
	}
	return "failed " + rule + " validation"
}
