// Package secrets reads and writes the Home Assistant secrets.yaml file
// and discovers !secret references across the configuration directory.
package secrets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SecretsFileName is the managed file inside the config directory.
const SecretsFileName = "secrets.yaml"

// referenceRe matches `!secret some_key` occurrences in YAML config files.
var referenceRe = regexp.MustCompile(`!secret\s+([A-Za-z0-9_]+)`)

// Store is the secret-file contract consumed by the sync engine.
type Store interface {
	// ScanReferencedKeys returns every secret key referenced via !secret
	// in the configuration directory's YAML files.
	ScanReferencedKeys() ([]string, error)

	// ExistingKeys returns the keys already present in secrets.yaml.
	// A missing or unparseable file yields an empty set, not an error.
	ExistingKeys() ([]string, error)

	// ReadRaw returns the raw secrets.yaml content ("" when missing).
	ReadRaw() (string, error)

	// WriteRaw replaces the secrets.yaml content.
	WriteRaw(content string) error

	// Apply writes the given values into secrets.yaml, replacing lines
	// for existing keys and appending new ones. It returns all written
	// keys and the subset that was newly added. Values are opened from
	// their enclaves only for the duration of the write.
	Apply(values map[string]*memguard.Enclave) (written []string, added []string, err error)
}

// File implements Store against a Home Assistant config directory.
type File struct {
	dir    string
	logger *zap.SugaredLogger
}

// NewFile creates a Store rooted at the given config directory.
func NewFile(dir string, logger *zap.SugaredLogger) *File {
	return &File{dir: dir, logger: logger}
}

func (f *File) path() string {
	return filepath.Join(f.dir, SecretsFileName)
}

func (f *File) ScanReferencedKeys() ([]string, error) {
	seen := map[string]struct{}{}

	err := filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories (.storage, .git) hold no user config.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if d.Name() == SecretsFileName {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			// A single unreadable file should not break discovery.
			f.logger.Warnw("skipping unreadable config file", "path", path, "error", err)
			return nil
		}
		for _, match := range referenceRe.FindAllStringSubmatch(string(data), -1) {
			seen[match[1]] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan config folder: %w", err)
	}

	return sortedKeys(seen), nil
}

func (f *File) ExistingKeys() ([]string, error) {
	data, err := os.ReadFile(f.path())
	if err != nil {
		return nil, nil
	}

	parsed := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		// A corrupt secrets file must not crash discovery.
		f.logger.Warnw("secrets file is not valid YAML, treating as empty", "error", err)
		return nil, nil
	}

	seen := make(map[string]struct{}, len(parsed))
	for key := range parsed {
		seen[key] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (f *File) ReadRaw() (string, error) {
	data, err := os.ReadFile(f.path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read secrets file: %w", err)
	}
	return string(data), nil
}

func (f *File) WriteRaw(content string) error {
	if err := os.WriteFile(f.path(), []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

func (f *File) Apply(values map[string]*memguard.Enclave) ([]string, []string, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}

	content, err := f.ReadRaw()
	if err != nil {
		return nil, nil, err
	}

	existing, err := f.ExistingKeys()
	if err != nil {
		return nil, nil, err
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, key := range existing {
		existingSet[key] = struct{}{}
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var added []string
	for _, key := range keys {
		locked, err := values[key].Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open secret value for %s: %w", key, err)
		}
		line := key + ": " + yamlScalar(locked.String())
		locked.Destroy()

		if _, ok := existingSet[key]; ok {
			// Line-level replace keeps comments and ordering of
			// everything outside the managed key.
			lineRe := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `\s*:.*$`)
			content = lineRe.ReplaceAllString(content, line)
		} else {
			if content != "" && !strings.HasSuffix(content, "\n") {
				content += "\n"
			}
			content += line + "\n"
			added = append(added, key)
		}
	}

	if err := f.WriteRaw(content); err != nil {
		return nil, nil, err
	}
	return keys, added, nil
}

// yamlScalar renders a value as a single-line YAML scalar, quoting only
// when required.
func yamlScalar(v string) string {
	out, err := yaml.Marshal(v)
	if err == nil {
		s := strings.TrimSuffix(string(out), "\n")
		if !strings.Contains(s, "\n") {
			return s
		}
	}

	// Multi-line or otherwise awkward values get double-quoted style,
	// which YAML folds onto one line with escapes.
	node := &yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: v}
	out, err = yaml.Marshal(node)
	if err != nil {
		return fmt.Sprintf("%q", v)
	}
	return strings.TrimSuffix(string(out), "\n")
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
