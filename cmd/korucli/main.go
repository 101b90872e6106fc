// Command korucli prints the adapters a backend exposes as JSON.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"

	units "github.com/docker/go-units"
	log "github.com/sirupsen/logrus"

	"github.com/koru3d/koru/gfx"
	"github.com/koru3d/koru/gfx/soft"
	"github.com/koru3d/koru/gfx/vkr"
)

type queueFamily struct {
	Graphics bool   `json:"graphics"`
	Compute  bool   `json:"compute"`
	Transfer bool   `json:"transfer"`
	Present  bool   `json:"present"`
	Count    uint32 `json:"count"`
}

type adapter struct {
	Index         int           `json:"index"`
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	VendorID      int           `json:"vendorId"`
	DriverVersion int           `json:"driverVersion"`
	Memory        string        `json:"memory"`
	Selected      bool          `json:"selected"`
	Invalid       bool          `json:"invalid,omitempty"`
	Extensions    []string      `json:"extensions"`
	QueueFamilies []queueFamily `json:"queueFamilies"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flags := flag.NewFlagSet("korucli", flag.ContinueOnError)
	useSoft := flags.Bool("soft", false, "Query the software backend instead of Vulkan")
	debug := flags.Bool("vkdbg", false, "Load Vulkan validation layers")
	prefer := flags.String("adapter", "", "Name of the preferred adapter")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	var backend gfx.Backend
	if *useSoft {
		backend = soft.New(soft.Config{})
	} else {
		vb, err := vkr.New(vkr.Config{Debug: *debug})
		if err != nil {
			log.WithError(err).Error("vulkan unavailable")
			return 2
		}
		backend = vb
	}

	instance, err := gfx.NewInstance(backend, gfx.InstanceConfig{Debug: *debug})
	if err != nil {
		log.WithError(err).Error("adapter enumeration failed")
		return 2
	}
	defer instance.Destroy()

	selected := instance.SelectAdapter(*prefer)
	var out []adapter
	for i, a := range instance.Adapters() {
		families := make([]queueFamily, 0, len(a.QueueFamilies))
		for _, f := range a.QueueFamilies {
			families = append(families, queueFamily{
				Graphics: f.Flags&gfx.QueueGraphics != 0,
				Compute:  f.Flags&gfx.QueueCompute != 0,
				Transfer: f.Flags&gfx.QueueTransfer != 0,
				Present:  f.Present,
				Count:    f.Count,
			})
		}
		out = append(out, adapter{
			Index:         i,
			Name:          a.Name,
			Type:          a.Type.String(),
			VendorID:      a.VendorID,
			DriverVersion: a.DriverVersion,
			Memory:        units.BytesSize(float64(a.Memory)),
			Selected:      i == selected,
			Invalid:       a.Invalid,
			Extensions:    a.Extensions,
			QueueFamilies: families,
		})
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.WithError(err).Error("encoding adapters")
		return 2
	}
	return 0
}
