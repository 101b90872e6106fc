// Package importer converts interchange formats into asset payloads.
// Images are decoded with the standard and x/image codecs plus TGA,
// meshes from Wavefront OBJ and Collada.
package importer

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownFormat is returned for inputs no importer recognizes.
var ErrUnknownFormat = errors.New("importer: unknown format")

func extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
