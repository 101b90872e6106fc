// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	units "github.com/docker/go-units"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/koru/utility/kar"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil || u.Name == "" {
		return "unknown"
	}
	return u.Name
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flags := flag.NewFlagSet("kar", flag.ContinueOnError)
	var (
		author   = flags.String("author", currentUserName(), "Set the author of the package when compressing")
		version  = flags.Int64("version", 1, "Archive version number to create it with")
		extract  = flags.String("e", "", "Extract the archive given")
		compress = flags.String("c", "", "Compress the given file/folder")
		list     = flags.String("l", "", "List the contents of the archive given")
		dstFile  = flags.String("f", "out.kar", "Destination file, or directory when extracting")
		silent   = flags.Bool("s", false, "Silent")
	)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *compress, *list} {
		if op != "" {
			ops++
		}
	}
	if ops != 1 {
		if ops > 1 {
			log.Error("only one operation at a time")
		}
		flags.PrintDefaults()
		return 1
	}

	var err error
	switch {
	case *compress != "":
		err = compressFiles(*compress, *dstFile, kar.Header{
			Author:      *author,
			DateCreated: time.Now().Unix(),
			Version:     *version,
		})
	case *extract != "":
		err = extractFiles(*extract, *dstFile)
	case *list != "":
		err = listFiles(*list, stdout)
	}
	if err != nil {
		log.WithError(err).Error("kar failed")
		return 2
	}
	return 0
}

func compressFiles(src, dst string, header kar.Header) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	var filesToCompress []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		filesToCompress = append(filesToCompress, path)
		return nil
	})
	if err != nil {
		return err
	}

	karBuilder, err := kar.NewBuilder(header)
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		name, err := filepath.Rel(src, ftc)
		if err != nil || name == "." {
			name = filepath.Base(ftc)
		}
		if err := addFile(karBuilder, filepath.ToSlash(name), ftc); err != nil {
			return err
		}
		log.WithField("file", name).Debug("added")
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	size, err := karBuilder.WriteTo(out)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	log.WithFields(log.Fields{
		"files": len(filesToCompress),
		"size":  units.HumanSize(float64(size)),
	}).Info("archive written")
	return out.Close()
}

func addFile(b *kar.Builder, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Add(name, f)
}

func extractFiles(src, dstDir string) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, name := range archive.Names() {
		path := filepath.Join(dstDir, filepath.FromSlash(name))
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return errors.Newf("refusing to extract %q outside %s", name, dstDir)
		}
		data, err := archive.ReadAll(name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		log.WithField("file", name).Debug("extracted")
	}
	log.WithField("files", len(archive.Names())).Info("archive extracted")
	return nil
}

func listFiles(src string, w io.Writer) error {
	archive, err := kar.OpenFile(src)
	if err != nil {
		return err
	}
	defer archive.Close()

	header := archive.Header()
	fmt.Fprintf(w, "author: %s\nversion: %d\n", header.Author, header.Version)
	for _, name := range archive.Names() {
		entry, _ := archive.Stat(name)
		fmt.Fprintf(w, "%s\t%s\t%s\n", name,
			units.BytesSize(float64(entry.Size)),
			units.BytesSize(float64(entry.CompressedSize)))
	}
	return nil
}
