package kbfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed kb.schema.json
	documentSchemaJSON []byte
	//go:embed query.schema.json
	querySchemaJSON []byte
)

var (
	schemaOnce     sync.Once
	documentSchema *jsonschema.Schema
	querySchema    *jsonschema.Schema
	schemaErr      error
)

func loadSchemas() error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if schemaErr = compiler.AddResource("mivar://kb.schema.json", bytes.NewReader(documentSchemaJSON)); schemaErr != nil {
			return
		}
		if schemaErr = compiler.AddResource("mivar://query.schema.json", bytes.NewReader(querySchemaJSON)); schemaErr != nil {
			return
		}
		if documentSchema, schemaErr = compiler.Compile("mivar://kb.schema.json"); schemaErr != nil {
			return
		}
		querySchema, schemaErr = compiler.Compile("mivar://query.schema.json")
	})
	return schemaErr
}

// Format is a document encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf picks the encoding from a file extension. Anything other than
// .json is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

// Parse decodes and validates a knowledge-base document.
func Parse(data []byte) (*Document, error) {
	if err := loadSchemas(); err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}
	var doc Document
	if err := decode(data, documentSchema, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseQuery decodes and validates a query document.
func ParseQuery(data []byte) (*Query, error) {
	if err := loadSchemas(); err != nil {
		return nil, fmt.Errorf("failed to compile query schema: %w", err)
	}
	var q Query
	if err := decode(data, querySchema, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Load reads a knowledge-base document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadQuery reads a query document from disk.
func LoadQuery(path string) (*Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	q, err := ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// decode parses data as YAML (a superset of JSON), validates the generic
// form against schema, then decodes into out.
func decode(data []byte, schema *jsonschema.Schema, out any) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	// Round-trip through JSON so the validator sees JSON value types.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to normalize document: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("failed to normalize document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document schema validation failed: %w", err)
	}
	return json.Unmarshal(b, out)
}

// Marshal encodes d in the given format.
func (d *Document) Marshal(f Format) ([]byte, error) {
	if f == JSON {
		return json.MarshalIndent(d, "", "  ")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ScanDir walks root for *.yaml, *.yml and *.json documents and calls fn for
// each, with the load error if the document is invalid. Query documents,
// named *.query.<ext>, are skipped. Returning an error from fn stops the walk.
func ScanDir(root string, fn func(path string, doc *Document, err error) error) error {
	ignored := []string{".git", "vendor", "node_modules"}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			for _, ign := range ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}
		if IsQueryFile(d.Name()) {
			return nil
		}

		doc, loadErr := Load(path)
		return fn(path, doc, loadErr)
	})
}

// IsQueryFile reports whether name follows the *.query.<ext> convention.
func IsQueryFile(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(strings.ToLower(base), ".query")
}
