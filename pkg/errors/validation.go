package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxPathLength bounds input and output paths accepted by the CLI and server.
const maxPathLength = 4096

// ValidatePath validates an input or output file path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateOutputPath validates an output path and ensures it does not
// overwrite the input file.
func ValidateOutputPath(input, output string) error {
	if err := ValidatePath(output); err != nil {
		return err
	}
	if filepath.Clean(input) == filepath.Clean(output) {
		return New(ErrCodeInvalidPath, "output %q would overwrite the input image", output)
	}
	return nil
}

// ValidateFormatName validates a short image format name such as "png".
func ValidateFormatName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidFormat, "format cannot be empty")
	}
	if strings.ContainsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		return New(ErrCodeInvalidFormat, "format %q contains invalid characters", name)
	}
	return nil
}
