package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/engine"
	"github.com/QuickTools-one/qr-pdf-compress/internal/unit"
)

// workerCmd is the child-process side of an execution context. The parent
// spawns `qrpdf worker`, writes one task to stdin, reads responses from
// stdout, and kills the process when done. Not intended for interactive use.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one execution-context task from stdin (internal)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := unit.NewWorker(engine.New(nil), codec.NewPDFCPU())
		return w.Serve(cmd.Context(), os.Stdin, os.Stdout)
	},
}
