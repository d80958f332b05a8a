// internal/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypePredicates(t *testing.T) {
	cases := []struct {
		err       error
		predicate func(error) bool
		name      string
	}{
		{NewValidationError("bad input", nil), IsValidationError, "validation"},
		{NewNotFoundError("missing", nil), IsNotFoundError, "not found"},
		{NewConflictError("busy", nil), IsConflictError, "conflict"},
		{NewGenerationError("upstream", nil), IsGenerationError, "generation"},
		{NewMalformedResponseError("bad json", nil), IsMalformedResponseError, "malformed"},
		{NewRelayError("upstream 500", nil), IsRelayError, "relay"},
		{NewExportError("empty", nil), IsExportError, "export"},
	}

	for _, tc := range cases {
		if !tc.predicate(tc.err) {
			t.Fatalf("%s 判定失败: %v", tc.name, tc.err)
		}
	}

	if IsValidationError(errors.New("plain")) {
		t.Fatal("普通错误不应匹配任何类型")
	}
}

func TestMalformedCountsAsGeneration(t *testing.T) {
	err := NewMalformedResponseError("bad json", nil)
	if !IsGenerationError(err) {
		t.Fatal("解析错误应归入生成错误")
	}
	if IsMalformedResponseError(NewGenerationError("upstream", nil)) {
		t.Fatal("生成错误不应反向归入解析错误")
	}
}

func TestWrapErrorPreservesType(t *testing.T) {
	inner := NewMalformedResponseError("bad json", nil)
	wrapped := WrapError(inner, "生成大纲失败", ErrorTypeGeneration)

	if !IsMalformedResponseError(wrapped) {
		t.Fatal("包装不应改变已有的错误类型")
	}
	if !IsGenerationError(wrapped) {
		t.Fatal("包装后的错误仍应归入生成错误")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError(nil, "message", ErrorTypeGeneration) != nil {
		t.Fatal("包装nil应返回nil")
	}
}

func TestErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewGenerationError("上游调用失败", cause)

	if !errors.Is(err, cause) {
		t.Fatal("错误链应保留原始错误")
	}
	if err.Error() != fmt.Sprintf("上游调用失败: %v", cause) {
		t.Fatalf("错误消息不符: %s", err.Error())
	}
}

func TestGenerateErrorCode(t *testing.T) {
	if NewExportError("x", nil).Code != "EXPORT_ERROR" {
		t.Fatal("导出错误代码不符")
	}
	if NewValidationError("x", nil).Code != "VALIDATION_ERROR" {
		t.Fatal("校验错误代码不符")
	}
}
