package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"strconv"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"imgconv": func() int { return run(os.Args[1:]) },
		"mkpng":   mkpng,
	}))
}

// mkpng writes a gradient PNG: mkpng file width height
func mkpng() int {
	if len(os.Args) != 4 {
		return 1
	}
	w, _ := strconv.Atoi(os.Args[2])
	h, _ := strconv.Atoi(os.Args[3])
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x80, A: 0xff})
		}
	}
	f, err := os.Create(os.Args[1])
	if err != nil {
		return 1
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return 1
	}
	return 0
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{Dir: "testdata"})
}

func TestExitCodes(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	text := dir + "/notes.txt"
	c.Assert(os.WriteFile(text, []byte("text"), 0o644), qt.IsNil)
	// 1x1 true color TGA holding one blue pixel
	tga := dir + "/pixel.tga"
	c.Assert(os.WriteFile(tga, []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 1, 0, 24, 0, 0xff, 0, 0}, 0o644), qt.IsNil)
	short := dir + "/short.tga"
	c.Assert(os.WriteFile(short, []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0, 4, 0, 24, 0, 0xff}, 0o644), qt.IsNil)

	for _, test := range []struct {
		args []string
		code int
	}{
		{[]string{"only-one"}, exitUsage},
		{[]string{dir + "/missing.png", dir + "/out.kra"}, exitRead},
		{[]string{text, dir + "/out.kra"}, exitUnknownFormat},
		{[]string{tga, dir + "/pixel.kra"}, exitOK},
		{[]string{short, dir + "/short.kra"}, exitRead},
	} {
		c.Check(run(test.args), qt.Equals, test.code, qt.Commentf("imgconv %v", test.args))
	}
}
