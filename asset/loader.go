package asset

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/koru3d/koru/utility/kar"
)

// Extension of container files.
const Extension = ".kra"

// Source yields raw container bytes by asset name.
type Source interface {
	Open(name string) (io.ReadCloser, error)
	io.Closer
}

// DirSource reads containers from a directory tree. Names are slash
// separated paths relative to the root.
type DirSource string

// Open implements Source.
func (d DirSource) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), filepath.FromSlash(name)))
}

// Close implements Source.
func (DirSource) Close() error { return nil }

// ArchiveSource reads containers from a kar archive.
type ArchiveSource struct {
	*kar.Archive
}

// Open implements Source.
func (a ArchiveSource) Open(name string) (io.ReadCloser, error) {
	data, err := a.Archive.ReadAll(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// OpenSource opens path as a kar archive when it is a regular file,
// else as a directory.
func OpenSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening asset source")
	}
	if info.IsDir() {
		return DirSource(path), nil
	}
	ar, err := kar.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return ArchiveSource{ar}, nil
}

// Loader decodes assets from a Source. Failures are soft: they are
// logged as warnings and the caller substitutes a fallback.
type Loader struct {
	source Source
	log    *logrus.Logger
}

// NewLoader creates a Loader over source. A nil logger means the
// standard logger.
func NewLoader(source Source, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{source: source, log: log}
}

// Load reads and decodes the named asset.
func (l *Loader) Load(name string) (Asset, bool) {
	payload, err := l.load(name)
	if err != nil {
		l.log.WithError(err).WithField("asset", name).Warn("asset load failed")
		return Asset{}, false
	}
	l.log.WithFields(logrus.Fields{"asset": name, "kind": payload.Kind()}).Debug("asset loaded")
	return Asset{Name: name, Payload: payload}, true
}

func (l *Loader) load(name string) (Payload, error) {
	rc, err := l.source.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Read(rc)
}

// LoadImage loads name and requires an image payload.
func (l *Loader) LoadImage(name string) (*Image, bool) {
	a, ok := l.Load(name)
	if !ok {
		return nil, false
	}
	img, ok := a.Image()
	if !ok {
		l.log.WithFields(logrus.Fields{"asset": name, "kind": a.Kind()}).Warn("asset is not an image")
	}
	return img, ok
}

// LoadMesh loads name and requires a mesh payload.
func (l *Loader) LoadMesh(name string) (*Mesh, bool) {
	a, ok := l.Load(name)
	if !ok {
		return nil, false
	}
	m, ok := a.Mesh()
	if !ok {
		l.log.WithFields(logrus.Fields{"asset": name, "kind": a.Kind()}).Warn("asset is not a mesh")
	}
	return m, ok
}

// Close closes the underlying source.
func (l *Loader) Close() error {
	return l.source.Close()
}
