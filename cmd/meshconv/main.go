// Command meshconv converts Wavefront OBJ and Collada meshes to the
// engine's mesh container.
//
//	meshconv in out
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/koru/asset"
	"github.com/koru3d/koru/asset/importer"
)

// Exit codes
const (
	exitOK = iota
	exitUsage
	exitUnknownFormat
	exitRead
	exitWrite
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("meshconv", flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "usage: meshconv in out")
	}
	if err := flags.Parse(args); err != nil || flags.NArg() != 2 {
		if err == nil {
			flags.Usage()
		}
		return exitUsage
	}
	in, out := flags.Arg(0), flags.Arg(1)

	f, err := os.Open(in)
	if err != nil {
		log.WithError(err).Error("cannot open input")
		return exitRead
	}
	defer f.Close()

	mesh, err := importer.Mesh(in, f)
	if errors.Is(err, importer.ErrUnknownFormat) {
		log.WithField("file", in).Error("unknown mesh format")
		return exitUnknownFormat
	}
	if err != nil {
		log.WithError(err).WithField("file", in).Error("cannot import mesh")
		return exitRead
	}

	if err := writeAsset(out, mesh); err != nil {
		log.WithError(err).WithField("file", out).Error("cannot write mesh")
		return exitWrite
	}
	log.WithFields(log.Fields{
		"vertices": len(mesh.Vertices),
		"indices":  len(mesh.Indices),
	}).Info("mesh converted")
	return exitOK
}

func writeAsset(path string, p asset.Payload) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := asset.Write(f, p); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
