package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(ErrCodeInvalidChunkSize, "rule %d: chunk size must be positive", 2)
	if got := err.Error(); got != "INVALID_CHUNK_SIZE: rule 2: chunk size must be positive" {
		t.Errorf("Error() = %q", got)
	}

	cause := fmt.Errorf("boom")
	wrapped := Wrap(ErrCodeInvalidImage, cause, "decode %s", "a.png")
	if !strings.HasSuffix(wrapped.Error(), ": boom") {
		t.Errorf("wrapped Error() = %q, want cause suffix", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestIsAndGetCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeInvalidPermutation, "dup"))

	if !Is(err, ErrCodeInvalidPermutation) {
		t.Error("Is should unwrap the chain")
	}
	if Is(err, ErrCodeInvalidChunkSize) {
		t.Error("Is should not match a different code")
	}
	if got := GetCode(err); got != ErrCodeInvalidPermutation {
		t.Errorf("GetCode = %q", got)
	}
	if got := GetCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidRule, "unknown kind %q", "x")); got != `unknown kind "x"` {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(fmt.Errorf("plain")); got != "plain" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestIsAuthoring(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(ErrCodeInvalidChunkSize, ""), true},
		{New(ErrCodeInvalidPermutation, ""), true},
		{New(ErrCodeInvalidRule, ""), true},
		{New(ErrCodeLengthInvariant, ""), false},
		{fmt.Errorf("plain"), false},
	}
	for _, tt := range tests {
		if got := IsAuthoring(tt.err); got != tt.want {
			t.Errorf("IsAuthoring(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"input.jpg", false},
		{"/tmp/out/output.png", false},
		{"", true},
		{"bad\x00name.png", true},
		{"bad\nname.png", true},
		{strings.Repeat("a", maxPathLength+1), true},
	}
	for _, tt := range tests {
		err := ValidatePath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if err != nil && !Is(err, ErrCodeInvalidPath) {
			t.Errorf("ValidatePath(%q) code = %q", tt.path, GetCode(err))
		}
	}
}

func TestValidateOutputPath(t *testing.T) {
	if err := ValidateOutputPath("in.png", "out.png"); err != nil {
		t.Errorf("distinct paths should pass: %v", err)
	}
	if err := ValidateOutputPath("dir/in.png", "dir/./in.png"); err == nil {
		t.Error("output equal to input should fail")
	}
}

func TestValidateFormatName(t *testing.T) {
	for _, ok := range []string{"png", "jpeg", "tiff"} {
		if err := ValidateFormatName(ok); err != nil {
			t.Errorf("ValidateFormatName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "../png", "p n g"} {
		if err := ValidateFormatName(bad); err == nil {
			t.Errorf("ValidateFormatName(%q) should fail", bad)
		}
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidRule,
		ErrCodeInvalidChunkSize,
		ErrCodeInvalidPermutation,
		ErrCodeInvalidFormat,
		ErrCodeInvalidImage,
		ErrCodeInvalidPath,
		ErrCodeFileNotFound,
		ErrCodeLengthInvariant,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
