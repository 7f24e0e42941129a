package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/smy-101/skillcatalog/internal/fileutil"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

var prettyOptions = &pretty.Options{Width: 80, Prefix: "", Indent: "  ", SortKeys: false}

// MarshalMin renders c as minified JSON. Field order follows the struct
// declarations and map keys are sorted, so equal catalogs give equal bytes.
func MarshalMin(c *types.Catalog) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to marshal catalog: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Pretty indents minified JSON. The output ends with a newline.
func Pretty(min []byte) []byte {
	return pretty.PrettyOptions(min, prettyOptions)
}

// ContentHash fingerprints everything in c except its version and generation
// time. Two runs over unchanged sources give the same hash.
func ContentHash(c *types.Catalog) (string, error) {
	min, err := MarshalMin(c)
	if err != nil {
		return "", err
	}
	for _, key := range []string{"version", "generated_at"} {
		if min, err = sjson.DeleteBytes(min, key); err != nil {
			return "", fmt.Errorf("failed to strip %s: %w", key, err)
		}
	}
	return fileutil.HashBytes(min), nil
}

// Decode parses a catalog file.
func Decode(data []byte) (*types.Catalog, error) {
	var c types.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	return &c, nil
}

// Load reads a catalog file. A missing file yields nil without error.
func Load(path string) (*types.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Decode(data)
}
