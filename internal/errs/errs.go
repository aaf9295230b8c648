// Package errs 定义了跨边界传递的结构化错误。
// 每个错误携带一个 Kind 和可选的业务 Code，调用方根据 Kind 决定
// 是向上抛出（认证类阻断流程）还是转换为展示值（迁移失败渲染为助手消息）。
package errs

import (
	"errors"
	"fmt"
)

// Kind 标识错误的分类。
type Kind string

const (
	KindAuth       Kind = "auth"       // 认证/授权失败，阻断流程
	KindNotFound   Kind = "not_found"  // 资源不存在
	KindValidation Kind = "validation" // 请求参数非法
	KindBackend    Kind = "backend"    // 外部迁移后端错误
	KindStore      Kind = "store"      // 持久化层错误，按原样向上传播
	KindInternal   Kind = "internal"   // 其他内部错误
)

// Error 是携带分类与业务代码的错误值。
type Error struct {
	Kind   Kind
	Code   string // 业务代码，如 "auth/invalid-credential"；可为空
	Detail string
	Err    error // 底层错误，可为空
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Code != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	case e.Detail != "":
		return e.Detail
	case e.Code != "":
		return e.Code
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建一个指定分类的错误。
func New(kind Kind, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

// Wrap 包装一个底层错误。
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf 返回错误的分类；非 *Error 的错误一律归为 internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf 返回错误携带的业务代码，没有则返回空字符串。
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// 认证错误代码常量。
const (
	CodeInvalidCredential  = "auth/invalid-credential"
	CodeUserNotFound       = "auth/user-not-found"
	CodeWrongPassword      = "auth/wrong-password"
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeOperationForbidden = "auth/operation-not-allowed"
	CodeTooManyRequests    = "auth/too-many-requests"
)

// authMessages 是认证错误代码到用户可见文案的固定映射表。
var authMessages = map[string]string{
	CodeInvalidCredential:  "Invalid email or password. Please check your credentials.",
	CodeUserNotFound:       "No account found with this email. Please sign up first.",
	CodeWrongPassword:      "Incorrect password. Please try again.",
	CodeEmailAlreadyInUse:  "This email is already registered. Please sign in instead.",
	CodeWeakPassword:       "Password should be at least 6 characters.",
	CodeInvalidEmail:       "Please enter a valid email address.",
	CodeOperationForbidden: "Email and password authentication is not enabled.",
	CodeTooManyRequests:    "Too many login attempts. Please try again later.",
}

// AuthMessage 将认证错误映射为用户可见文案。
// 未知代码回退到通用模板，没有代码的错误回退到错误本身的文案。
func AuthMessage(err error) string {
	code := CodeOf(err)
	if code == "" {
		return "An unexpected error occurred. Please try again."
	}
	if msg, ok := authMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Authentication error: %s", code)
}
