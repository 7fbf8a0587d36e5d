package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/usermgmt/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

// postRegister runs body through BindJSON on a RegisterRequest and decodes
// the error envelope when binding fails.
func postRegister(t *testing.T, body string) (int, bindErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/register", func(ctx *gin.Context) {
		var req handlers.RegisterRequest
		if handlers.BindJSON(ctx, &req) {
			ctx.Status(http.StatusCreated)
		}
	})

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp bindErrorResponse
	if w.Code != http.StatusCreated {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func rulesByField(resp bindErrorResponse) map[string]string {
	out := make(map[string]string, len(resp.Error.Details.Fields))
	for _, f := range resp.Error.Details.Fields {
		out[f.Field] = f.Rule
	}
	return out
}

func TestBindJSON_Accepts(t *testing.T) {
	code, _ := postRegister(t, `{"name":"Ada Lovelace","email":"ada@example.com","phone":"0123456789","password":"secret1","state":"Lagos","city":"Ikeja","country":"NG","pincode":"1000"}`)
	assert.Equal(t, http.StatusCreated, code)
}

func TestBindJSON_CollectsEveryFieldError(t *testing.T) {
	code, resp := postRegister(t, `{"name":"A1","email":"not-an-email","phone":"12ab","password":"abcdef","state":"Lagos","city":"Ikeja","country":"NG","pincode":"12"}`)

	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_failed", resp.Error.Code)
	assert.Equal(t, "Validation failed.", resp.Error.Message)

	assert.Equal(t, map[string]string{
		"name":     "min",
		"email":    "email",
		"phone":    "min",
		"password": "hasdigit",
		"pincode":  "min",
	}, rulesByField(resp))

	for _, f := range resp.Error.Details.Fields {
		assert.NotEmpty(t, f.Message, "field %s", f.Field)
	}
}

func TestBindJSON_CustomRules(t *testing.T) {
	_, resp := postRegister(t, `{"name":"Ada 2nd","email":"ada@example.com","phone":"01234abcde","password":"secret1","state":"Lagos","city":"Ikeja","country":"NG","pincode":"1000"}`)

	assert.Equal(t, map[string]string{
		"name":  "alphaspace",
		"phone": "digits",
	}, rulesByField(resp))
}

func TestBindJSON_DecodeFailures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantJSON  string
		wantField string
	}{
		{"type mismatch", `{"name":"Ada","email":"ada@example.com","phone":1234567890}`, "invalid_json_type", "phone"},
		{"syntax", `{"name":}`, "invalid_json_syntax", ""},
		{"truncated", `{"name":`, "invalid_json_syntax", ""},
		{"empty", ``, "empty_body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := postRegister(t, tt.body)

			require.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "invalid_request", resp.Error.Code)
			assert.Equal(t, tt.wantJSON, resp.Error.Details.JSON)
			assert.Equal(t, tt.wantField, resp.Error.Details.Field)
		})
	}
}
