package texsvg

import (
	"fmt"
	"log"

	"github.com/texsvg/texsvg/internal/device"
	"github.com/texsvg/texsvg/internal/dvi"
	"github.com/texsvg/texsvg/internal/fontdb"
	"github.com/texsvg/texsvg/internal/svgrender"
)

// renderDVI decodes a DVI byte stream and drives it through the SVG
// backend, returning the assembled document.
func renderDVI(data []byte, fdb fontdb.FontDB, logger *log.Logger) (string, error) {
	ops, err := dvi.Parse(data)
	if err != nil {
		return "", fmt.Errorf("decoding dvi stream: %w", err)
	}

	backend := svgrender.New(logger)
	exec := device.NewExecutor(backend, fdb)
	if err := exec.Run(ops); err != nil {
		return "", fmt.Errorf("executing dvi opcodes: %w", err)
	}
	return backend.GetContent(), nil
}
