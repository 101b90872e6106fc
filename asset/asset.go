// Package asset implements the engine's binary asset container and the
// Loader that feeds decoded assets to the renderer.
//
// Every container starts with the signature "KRA\x00" and a kind byte,
// followed by a kind specific header and payload. All values are little
// endian.
package asset

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind tags the payload of a container.
type Kind uint8

// Asset kinds.
const (
	KindImage    Kind = 1
	KindMesh     Kind = 2
	KindMaterial Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindMesh:
		return "mesh"
	case KindMaterial:
		return "material"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Signature opens every container.
var Signature = [4]byte{'K', 'R', 'A', '\x00'}

// Container errors.
var (
	ErrSignature   = errors.New("asset: bad signature")
	ErrUnknownKind = errors.New("asset: unknown kind")
	ErrUnsupported = errors.New("asset: unsupported format")
	ErrTruncated   = errors.New("asset: truncated data")
)

// Payload is one of *Image, *Mesh or *Material. The set is closed.
type Payload interface {
	Kind() Kind
	validate() error
}

// Asset is a named, decoded container.
type Asset struct {
	Name    string
	Payload Payload
}

// Kind returns the payload kind, zero for an empty asset.
func (a Asset) Kind() Kind {
	if a.Payload == nil {
		return 0
	}
	return a.Payload.Kind()
}

// Image returns the image payload when the asset is one.
func (a Asset) Image() (*Image, bool) {
	img, ok := a.Payload.(*Image)
	return img, ok
}

// Mesh returns the mesh payload when the asset is one.
func (a Asset) Mesh() (*Mesh, bool) {
	m, ok := a.Payload.(*Mesh)
	return m, ok
}

// Material returns the material payload when the asset is one.
func (a Asset) Material() (*Material, bool) {
	m, ok := a.Payload.(*Material)
	return m, ok
}
