package capabilities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reglet-dev/rtperm/internal/domain/permissions"
)

const ledgerSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "grants": {
      "type": ["array", "null"],
      "items": {"type": "string", "minLength": 1}
    },
    "denials": {
      "type": ["object", "null"],
      "additionalProperties": {"type": "integer", "minimum": 0}
    }
  }
}`

var compiledLedgerSchema = jsonschema.MustCompileString("grants.schema.json", ledgerSchema)

// DefaultGrantsPath returns ~/.rtperm/grants.yaml.
func DefaultGrantsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".rtperm", "grants.yaml")
}

// FileStore provides file-based persistence for the grant ledger.
type FileStore struct {
	configPath string
}

// NewFileStore creates a new FileStore. An empty path selects DefaultGrantsPath.
func NewFileStore(configPath string) *FileStore {
	if configPath == "" {
		configPath = DefaultGrantsPath()
	}
	return &FileStore{
		configPath: configPath,
	}
}

// ConfigPath returns the path to the grants file.
func (s *FileStore) ConfigPath() string {
	return s.configPath
}

// ledgerFile represents the YAML structure of ~/.rtperm/grants.yaml
type ledgerFile struct {
	Grants  []string       `yaml:"grants"`
	Denials map[string]int `yaml:"denials,omitempty"`
}

// Load loads the ledger from the grants file.
// If the file does not exist, it returns an empty ledger without error.
func (s *FileStore) Load() (*permissions.Ledger, error) {
	//nolint:gosec // G304: path comes from user configuration
	data, err := os.ReadFile(s.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return permissions.NewLedger(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read grants file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return permissions.NewLedger(), nil
	}

	if err := validateLedger(data); err != nil {
		return nil, err
	}

	var doc ledgerFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse grants file: %w", err)
	}

	ledger := permissions.NewLedger()
	for _, pattern := range doc.Grants {
		if err := ledger.Grant(pattern); err != nil {
			return nil, fmt.Errorf("grants file %s: %w", s.configPath, err)
		}
	}
	for name, count := range doc.Denials {
		ledger.Denials[name] = count
	}
	return ledger, nil
}

// Save writes the ledger to the grants file.
func (s *FileStore) Save(ledger *permissions.Ledger) error {
	if ledger == nil {
		ledger = permissions.NewLedger()
	}

	dir := filepath.Dir(s.configPath)
	//nolint:gosec // G301: 0o755 is standard for user config directories (~/.rtperm)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create grants directory: %w", err)
	}

	doc := ledgerFile{
		Grants:  append([]string{}, ledger.Grants...),
		Denials: ledger.Denials,
	}

	data, err := yaml.MarshalWithOptions(doc, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("failed to marshal grants to YAML: %w", err)
	}

	return os.WriteFile(s.configPath, data, 0o600)
}

// validateLedger checks the raw document against the ledger schema.
func validateLedger(data []byte) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse grants file: %w", err)
	}

	// jsonschema v5 expects instances decoded with UseNumber.
	decoder := json.NewDecoder(bytes.NewReader(jsonData))
	decoder.UseNumber()
	var doc interface{}
	if err := decoder.Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse grants file: %w", err)
	}

	if err := compiledLedgerSchema.Validate(doc); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return formatSchemaValidationError(validationErr)
		}
		return fmt.Errorf("grants file validation failed: %w", err)
	}
	return nil
}

// formatSchemaValidationError formats a JSON Schema validation error into a readable message.
func formatSchemaValidationError(err *jsonschema.ValidationError) error {
	var messages []string

	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if e.Message != "" && len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(err)

	if len(messages) == 0 {
		return fmt.Errorf("grants file validation failed")
	}
	return fmt.Errorf("grants file validation failed:\n    - %s", strings.Join(messages, "\n    - "))
}
