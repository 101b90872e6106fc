// Command imgconv converts PNG, JPEG, GIF, BMP, TIFF and WebP images to
// the engine's image container.
//
//	imgconv [-mips] [-hdr] in out
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
	flags := flag.NewFlagSet("imgconv", flag.ContinueOnError)
	mips := flags.Bool("mips", false, "Generate the full mip chain")
	hdr := flags.Bool("hdr", false, "Store 32 bit float channels")
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "usage: imgconv [-mips] [-hdr] in out")
		flags.PrintDefaults()
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

	src, format, err := importer.DecodeImageFile(in, f)
	if errors.Is(err, importer.ErrUnknownFormat) {
		log.WithField("file", in).Error("unknown image format")
		return exitUnknownFormat
	}
	if err != nil {
		log.WithError(err).WithField("file", in).Error("cannot decode image")
		return exitRead
	}

	img, err := importer.Image(src, importer.ImageOptions{Mips: *mips, HDR: *hdr})
	if err != nil {
		log.WithError(err).WithField("file", in).Error("cannot convert image")
		return exitRead
	}
	if err := writeAsset(out, img); err != nil {
		log.WithError(err).WithField("file", out).Error("cannot write image")
		return exitWrite
	}
	log.WithFields(log.Fields{
		"source": format,
		"width":  img.Width,
		"height": img.Height,
		"mips":   len(img.Mips),
	}).Info("image converted")
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
