package ginbinding

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/core"
)

type profile struct {
	City string `json:"city" check:"notblank"`
}

type signupRequest struct {
	Name    string   `json:"name" check:"notblank; length(2, 20)"`
	Age     int      `json:"age" check:"min(18)"`
	Email   string   `json:"email" validate:"omitempty,email"`
	Profile *profile `json:"profile" check:"valid"`
}

func newRouter(t *testing.T, v *validator.Validator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	previous := Install(v)
	t.Cleanup(func() { binding.Validator = previous })

	r := gin.New()
	r.POST("/signup", func(c *gin.Context) {
		var req signupRequest
		if !Bind(c, &req) {
			return
		}
		c.JSON(http.StatusCreated, gin.H{"name": req.Name})
	})
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBind(t *testing.T) {
	v, err := validator.New()
	require.NoError(t, err)
	r := newRouter(t, v)

	tests := []struct {
		name   string
		body   string
		status int
		checks []string
	}{
		{"合法请求", `{"name":"alice","age":20,"profile":{"city":"Paris"}}`, http.StatusCreated, nil},
		{"空名字", `{"name":"","age":20}`, http.StatusUnprocessableEntity, []string{"notblank", "length"}},
		{"未成年", `{"name":"bob","age":10}`, http.StatusUnprocessableEntity, []string{"min"}},
		{"邮箱格式", `{"name":"bob","age":30,"email":"nope"}`, http.StatusUnprocessableEntity, []string{"playground"}},
		{"级联字段", `{"name":"bob","age":30,"profile":{"city":" "}}`, http.StatusUnprocessableEntity, []string{"notblank"}},
		{"JSON 错误", `{"name":`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusUnprocessableEntity {
				return
			}
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, core.ErrConstraintsViolated.Error(), resp.Error)
			got := make([]string, len(resp.Fields))
			for i, f := range resp.Fields {
				got[i] = f.Check
				assert.NotEmpty(t, f.Message)
				assert.NotEmpty(t, f.Code)
			}
			assert.Equal(t, tt.checks, got)
		})
	}
}

func TestFieldErrorsUseFullPath(t *testing.T) {
	v, err := validator.New()
	require.NoError(t, err)
	sv := New(v)

	err = sv.ValidateStruct(&signupRequest{Name: "carol", Age: 40, Profile: &profile{}})
	var cve *core.ConstraintsViolatedError
	require.True(t, errors.As(err, &cve))

	fields := FieldErrors(cve)
	require.Len(t, fields, 1)
	assert.Equal(t, "signupRequest.Profile > profile.City", fields[0].Field)
	assert.Equal(t, "katydid.contract.notblank", fields[0].Code)
}

func TestStructValidator(t *testing.T) {
	v, err := validator.New()
	require.NoError(t, err)
	sv := New(v)

	assert.Same(t, v, sv.Engine())
	assert.NoError(t, sv.ValidateStruct(nil))
	assert.NoError(t, sv.ValidateStruct((*signupRequest)(nil)))
	assert.NoError(t, sv.ValidateStruct(&signupRequest{Name: "dave", Age: 18}))

	err = sv.ValidateStruct([]signupRequest{{Name: "erin", Age: 30}, {Name: "", Age: 30}})
	assert.True(t, errors.Is(err, core.ErrConstraintsViolated))
}

type scopedRequest struct {
	Code string `check:"notblank(profiles=create)"`
	Note string `check:"notblank(profiles=update)"`
}

func TestProfiles(t *testing.T) {
	v, err := validator.New()
	require.NoError(t, err)

	err = New(v, "create").ValidateStruct(&scopedRequest{})
	var cve *core.ConstraintsViolatedError
	require.True(t, errors.As(err, &cve))
	require.Len(t, cve.Violations, 1)
	assert.Equal(t, "scopedRequest.Code", cve.Violations[0].Context.String())
}
