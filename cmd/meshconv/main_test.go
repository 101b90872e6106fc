package main

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rogpeppe/go-internal/testscript"

	"github.com/koru3d/koru/asset"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"meshconv": func() int { return run(os.Args[1:]) },
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{Dir: "testdata"})
}

func TestConvertQuad(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	in, out := filepath.Join(dir, "quad.obj"), filepath.Join(dir, "quad.kra")
	c.Assert(os.WriteFile(in, []byte(
		"v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\n"+
			"vt 0 0\nvt 1 0\nvt 1 1\nvt 0 1\n"+
			"f 1/1 2/2 3/3 4/4\n"), 0o644), qt.IsNil)

	c.Assert(run([]string{in, out}), qt.Equals, exitOK)

	f, err := os.Open(out)
	c.Assert(err, qt.IsNil)
	defer f.Close()
	payload, err := asset.Read(f)
	c.Assert(err, qt.IsNil)
	mesh := payload.(*asset.Mesh)
	c.Assert(mesh.Vertices, qt.HasLen, 4)
	c.Assert(mesh.Indices, qt.DeepEquals, []uint32{0, 1, 2, 0, 2, 3})
}

func TestExitCodes(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	bad := filepath.Join(dir, "bad.obj")
	c.Assert(os.WriteFile(bad, []byte("f 1 2 3\n"), 0o644), qt.IsNil)
	fbx := filepath.Join(dir, "model.fbx")
	c.Assert(os.WriteFile(fbx, []byte("Kaydara FBX Binary"), 0o644), qt.IsNil)

	c.Assert(run(nil), qt.Equals, exitUsage)
	c.Assert(run([]string{filepath.Join(dir, "missing.obj"), "out.kra"}), qt.Equals, exitRead)
	c.Assert(run([]string{fbx, filepath.Join(dir, "out.kra")}), qt.Equals, exitUnknownFormat)
	c.Assert(run([]string{bad, filepath.Join(dir, "out.kra")}), qt.Equals, exitRead)
}
