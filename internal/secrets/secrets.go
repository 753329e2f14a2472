// Package secrets resolves credentials referenced from the config file.
// Deploy passwords, notifier URLs, and the telemetry DSN can name an
// environment variable instead of carrying the value, or point at a file,
// so config.yaml stays safe to commit and back up.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxSecretFileSize caps secret file reads. Secrets are tokens and
// passwords, not documents.
const maxSecretFileSize = 64 * 1024

// envRefPattern matches ${VAR} and ${VAR:-default} references.
var envRefPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandString resolves ${VAR} and ${VAR:-default} references against the
// environment. Strings without ${ pass through untouched, so literal
// dollar signs in passwords survive. A reference to an unset variable
// without a default is an error naming the variable, never its value.
func ExpandString(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var missing []string
	expanded := envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		key := ref[2 : len(ref)-1]
		name, fallback, hasFallback := strings.Cut(key, ":-")

		value := os.Getenv(name)
		if value == "" {
			if hasFallback {
				return fallback
			}
			missing = append(missing, name)
			return ""
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	return expanded, nil
}

// ReadFile reads a secret from a file, trimming trailing newlines. The
// file must be a regular file under the size cap; group or other
// permissions draw a warning since a credential file should be 0600.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}

	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}

	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}

	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}

	perm := info.Mode().Perm()
	if perm&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "WARNING: secret file has group/other permissions (perms: %04o): %s\n", perm, cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}

	return secret, nil
}

// Resolve returns the secret from the first configured source: a file
// path wins over a value, and a value may reference the environment.
// Both empty resolves to empty, callers decide whether that is an error.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		secret, err := ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file: %w", err)
		}
		return secret, nil
	}

	if value != "" {
		return ExpandString(value)
	}

	return "", nil
}
