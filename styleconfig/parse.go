package styleconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Format names an on-disk encoding of the document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

//go:embed document.schema.json
var documentSchema string

var schema = jsonschema.MustCompileString("document.schema.json", documentSchema)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile reads and parses a document file.
func LoadFile(path string) (Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(data, format)
	if err != nil {
		return Document{}, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a document. It either returns a complete,
// valid document or an error wrapping ErrSyntax, ErrSchema or
// ErrUnresolvedPlugin.
func Parse(data []byte, format Format) (Document, error) {
	raw, err := decodeRaw(data, format)
	if err != nil {
		return Document{}, err
	}
	if raw, err = normalize(raw, ""); err != nil {
		return Document{}, err
	}

	// Round-trip through JSON so every format reaches the schema with the
	// same value types.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	var generic any
	if err := json.Unmarshal(normalized, &generic); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if err := schema.Validate(generic); err != nil {
		return Document{}, schemaErrors(err)
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func decodeRaw(data []byte, format Format) (any, error) {
	var raw any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
	case FormatTOML:
		var table map[string]any
		if err := toml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		raw = table
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrSyntax)
	}
	return raw, nil
}

// normalize rewrites a decoded YAML or TOML value into the shapes
// encoding/json produces. Scalar map keys become strings. Values JSON has
// no type for, such as timestamps, are schema errors rather than being
// converted to strings.
func normalize(v any, path string) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int64, uint64:
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalize(val, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, ok := scalarKey(k)
			if !ok {
				return nil, &ValidationError{Path: path, Err: fmt.Errorf("%w: unsupported key type %T", ErrSchema, k)}
			}
			n, err := normalize(val, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalize(val, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalize(val, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, &ValidationError{Path: path, Err: fmt.Errorf("%w: unsupported value type %T", ErrSchema, v)}
	}
}

func scalarKey(k any) (string, bool) {
	switch t := k.(type) {
	case string:
		return t, true
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func schemaErrors(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	var errs []error
	collectSchemaErrors(&errs, ve)
	return errors.Join(errs...)
}

func collectSchemaErrors(errs *[]error, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		*errs = append(*errs, &ValidationError{
			Path: pointerToPath(ve.InstanceLocation),
			Err:  fmt.Errorf("%w: %s", ErrSchema, ve.Message),
		})
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(errs, cause)
	}
}

// pointerToPath turns "/theme/extend/colors" into "theme.extend.colors".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	return strings.ReplaceAll(ptr, "/", ".")
}
