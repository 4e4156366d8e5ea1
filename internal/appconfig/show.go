package appconfig

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
)

// ShowConfig prints where the configuration came from and the merged values.
func ShowConfig(out io.Writer, file string, cfg Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	fmt.Fprintln(out, "Current configuration:")
	pp.Fprintln(out, cfg)

	fmt.Fprintln(out, "Effective values:")
	fmt.Fprintf(out, "  Variant:         %s\n", cfg.VariantName())
	fmt.Fprintf(out, "  Iterations:      %d\n", cfg.IterationCount())
	fmt.Fprintf(out, "  Runs Dir:        %s\n", cfg.RunsDirectory())
	fmt.Fprintf(out, "  Run IDs:         %s\n", cfg.RunIDSource())
	fmt.Fprintf(out, "  Eval Batch Size: %d\n", cfg.EvalBatch())
	fmt.Fprintf(out, "  Device:          %s\n", cfg.DeviceMode())
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
}
