// Package ginbinding 用契约验证器替换 gin 的默认绑定校验
package ginbinding

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/core"
)

// StructValidator 实现 binding.StructValidator
type StructValidator struct {
	v        *validator.Validator
	profiles []string
}

var _ binding.StructValidator = (*StructValidator)(nil)

// New 创建绑定校验器，profiles 非空时只执行这些 profile 的校验
func New(v *validator.Validator, profiles ...string) *StructValidator {
	if v == nil {
		v = validator.Default()
	}
	return &StructValidator{v: v, profiles: profiles}
}

// Install 把 v 设置为 gin 的全局绑定校验器，返回之前的校验器
func Install(v *validator.Validator, profiles ...string) binding.StructValidator {
	previous := binding.Validator
	binding.Validator = New(v, profiles...)
	return previous
}

// ValidateStruct 校验绑定结果，存在违反时返回 *core.ConstraintsViolatedError
func (s *StructValidator) ValidateStruct(obj any) error {
	if core.IsNil(obj) {
		return nil
	}
	return s.v.AssertValid(obj, s.profiles...)
}

// Engine 返回底层验证器
func (s *StructValidator) Engine() any {
	return s.v
}

// ============================================================================
// 响应
// ============================================================================

// FieldError 单个违反的响应格式
type FieldError struct {
	Field   string `json:"field"`
	Check   string `json:"check"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse 校验失败的响应体
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldErrors 把违反转换为响应格式
// 级联违反只保留叶子节点，Field 为从根对象开始的完整位置
func FieldErrors(err *core.ConstraintsViolatedError) []FieldError {
	var out []FieldError
	for _, root := range err.Violations {
		for _, v := range root.Flatten() {
			if len(v.Causes) > 0 {
				continue
			}
			out = append(out, FieldError{Field: v.PathString(), Check: v.CheckName, Code: v.ErrorCode, Message: v.Message})
		}
	}
	return out
}

// Abort 根据绑定错误中止请求
// 约束违反返回 422 和字段列表，其余错误（JSON 解析失败等）返回 400
func Abort(c *gin.Context, err error) {
	var cve *core.ConstraintsViolatedError
	if errors.As(err, &cve) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:  core.ErrConstraintsViolated.Error(),
			Fields: FieldErrors(cve),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// Bind 绑定请求并在失败时中止，返回是否可以继续处理
func Bind(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		Abort(c, err)
		return false
	}
	return true
}
