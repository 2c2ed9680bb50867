package secretscan

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MinEntropy is the Shannon entropy, in bits per character, above which a
// 64-digit hex token is treated as a private key rather than a placeholder.
const MinEntropy = 3.0

// IgnoreMarker excludes a line from scanning, e.g. for a published block hash.
// It is honored only when WithIgnoreMarker is passed.
const IgnoreMarker = "secretscan:ignore"

type options struct {
	honorIgnoreMarker bool
}

// Option customizes a scan.
type Option func(*options)

// WithIgnoreMarker skips lines carrying IgnoreMarker.
func WithIgnoreMarker() Option {
	return func(o *options) { o.honorIgnoreMarker = true }
}

var keyPattern = regexp.MustCompile(`\b(?:0[xX])?[0-9a-fA-F]{64}\b`)

// Finding is one private-key-shaped literal. It never holds the literal itself.
type Finding struct {
	Path    string
	Line    int
	Preview string
}

func (f Finding) String() string {
	if f.Path == "" {
		return fmt.Sprintf("line %d: private key literal %s", f.Line, f.Preview)
	}
	return fmt.Sprintf("%s:%d: private key literal %s", f.Path, f.Line, f.Preview)
}

// Scan reports every high-entropy 256-bit hex literal in r.
func Scan(r io.Reader, opts ...Option) ([]Finding, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("scan for key literals: %w", err)
	}
	return ScanBytes(data, opts...), nil
}

// ScanBytes is Scan over an in-memory document. Line length is unbounded.
func ScanBytes(data []byte, opts ...Option) []Finding {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var findings []Finding
	for i, line := range bytes.Split(data, []byte("\n")) {
		if o.honorIgnoreMarker && bytes.Contains(line, []byte(IgnoreMarker)) {
			continue
		}
		for _, match := range keyPattern.FindAll(line, -1) {
			hexDigits := strings.TrimPrefix(strings.TrimPrefix(string(match), "0x"), "0X")
			if Entropy(hexDigits) < MinEntropy {
				continue
			}
			findings = append(findings, Finding{Line: i + 1, Preview: mask(hexDigits)})
		}
	}
	return findings
}

// ScanFiles scans files and, recursively, directories. Hidden directories are
// skipped and lines carrying IgnoreMarker are excluded.
func ScanFiles(paths []string) ([]Finding, error) {
	var findings []Finding
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			fileFindings, err := scanFile(path)
			if err != nil {
				return err
			}
			findings = append(findings, fileFindings...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	return findings, nil
}

func scanFile(path string) ([]Finding, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	findings, err := Scan(file, WithIgnoreMarker())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range findings {
		findings[i].Path = path
	}
	return findings, nil
}

// Entropy returns the Shannon entropy of s in bits per character.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	for _, r := range strings.ToLower(s) {
		counts[r]++
	}
	total := float64(len(s))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func mask(hexDigits string) string {
	return hexDigits[:4] + strings.Repeat("*", 8)
}
