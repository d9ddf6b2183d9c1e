package conductor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const documentExt = ".json"

// readDocument runs the file checks shared by router and config files, in
// the order a user is most likely to need them reported.
func readDocument(kind, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("conductor: %s file %s does not exist: %w", kind, path, ErrFileNotFound)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("conductor: %s file %s is not accessible: %w", kind, path, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("conductor: stat %s file %s: %w", kind, path, err)
	}

	if filepath.Ext(path) != documentExt {
		return nil, fmt.Errorf("conductor: %s file %s is not a JSON file: %w", kind, path, ErrInvalidFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("conductor: %s file %s is not readable: %w", kind, path, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("conductor: open %s file %s: %w", kind, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("conductor: stat %s file %s: %w", kind, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("conductor: %s file %s is a directory: %w", kind, path, ErrNotAFile)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("conductor: %s file %s is not readable: %w", kind, path, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("conductor: read %s file %s: %w", kind, path, err)
	}
	return data, nil
}

// decodeDocument parses a JSON object. Anything that is not an object is
// reported as a parse error.
func decodeDocument(kind string, data []byte) (map[string]any, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("conductor: %s document: %w: %v", kind, ErrParse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("conductor: %s document: %w: trailing data", kind, ErrParse)
	}
	if doc == nil {
		return nil, fmt.Errorf("conductor: %s document: %w: expected an object", kind, ErrParse)
	}
	return doc, nil
}

// checkVersion compares the document's "$version" against want.
func checkVersion(kind string, doc map[string]any, want string) (string, error) {
	got := "unset"
	if v, ok := doc["$version"]; ok {
		got = fmt.Sprint(v)
		if s, isString := v.(string); isString && s == want {
			return s, nil
		}
	}
	return got, fmt.Errorf("conductor: %s version %s does not match expected version %s: %w",
		kind, got, want, ErrVersionMismatch)
}

// subMap returns doc[key] as a mapping, or an empty one when absent.
func subMap(kind string, doc map[string]any, key string) (map[string]any, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("conductor: %s key %q must be an object, got %s: %w",
			kind, key, typeName(raw), ErrParse)
	}
	return m, nil
}

// typeName names JSON value types the way a router file author thinks of them.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
