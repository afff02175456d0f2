package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dblohm7/objfile/pe"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tc-hib/winres"
)

// DumpCmd holds the dumppe flags
type DumpCmd struct {
	Headers   bool
	Sections  bool
	Symbols   bool
	DebugInfo bool
	Verbose   bool

	out io.Writer
	log *logrus.Logger
}

// NewDumpCmd creates the root command
func NewDumpCmd() *cobra.Command {
	cmd := &DumpCmd{
		log: logrus.New(),
	}
	dumpCmd := &cobra.Command{
		Use:           "dumppe [flags] <filePath>",
		Short:         "Dumps the contents of a PE binary",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(c *cobra.Command, _ []string) {
			cmd.out = c.OutOrStdout()
			cmd.log.SetOutput(c.ErrOrStderr())
			if cmd.Verbose {
				cmd.log.SetLevel(logrus.DebugLevel)
			}
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return cmd.Run(args[0])
		},
	}

	dumpCmd.Flags().BoolVar(&cmd.Headers, "headers", false, "dump essential headers")
	dumpCmd.Flags().BoolVar(&cmd.Sections, "sections", false, "dump section headers")
	dumpCmd.Flags().BoolVar(&cmd.Symbols, "symbols", false, "dump exports and imports")
	dumpCmd.Flags().BoolVar(&cmd.DebugInfo, "debuginfo", false, "dump debug info")
	dumpCmd.PersistentFlags().BoolVarP(&cmd.Verbose, "verbose", "v", false, "log parser diagnostics")

	dumpCmd.AddCommand(NewResourcesCmd(cmd))
	return dumpCmd
}

// Run runs the command logic
func (cmd *DumpCmd) Run(filePath string) error {
	pef, err := pe.Open(filePath, pe.WithLogger(cmd.log.WithField("file", filePath)))
	if err != nil {
		return fmt.Errorf("error opening %q: %w", filePath, err)
	}
	defer pef.Close()

	if !cmd.Headers && !cmd.Sections && !cmd.Symbols && !cmd.DebugInfo {
		cmd.Headers = true
	}
	if cmd.Headers {
		cmd.runDumpHeaders(pef)
	}
	if cmd.Sections {
		cmd.runDumpSections(pef)
	}
	if cmd.Symbols {
		cmd.runDumpSymbols(pef)
	}
	if cmd.DebugInfo {
		return cmd.runDumpDebugInfo(pef)
	}
	return nil
}

func (cmd *DumpCmd) runDumpHeaders(pef *pe.File) {
	fmt.Fprintf(cmd.out, "FileHeader:\n\n%#v\n\n", *(pef.FileHeader()))
	fmt.Fprintf(cmd.out, "Machine:           %v\n", pef.Machine())
	fmt.Fprintf(cmd.out, "PE32+:             %v\n", pef.Is64())
	fmt.Fprintf(cmd.out, "ImageBase:         0x%X\n", pef.ImageBase())
	fmt.Fprintf(cmd.out, "Entry:             0x%X\n", pef.Entry())
	fmt.Fprintf(cmd.out, "SectionAlignment:  0x%X\n", pef.SectionAlignment())
	fmt.Fprintf(cmd.out, "HasDebugSymbols:   %v\n\n", pef.HasDebugSymbols())
}

func (cmd *DumpCmd) runDumpSections(pef *pe.File) {
	raw := pef.RawSections()
	fmt.Fprintf(cmd.out, "%d sections:\n\n", len(raw))
	it := pef.Sections()
	for sec, ok := it.Next(); ok; sec, ok = it.Next() {
		name, ok := sec.Name()
		if !ok {
			name = "<invalid>"
		}
		fmt.Fprintf(cmd.out, "Index %2d: %-8s %-17v addr 0x%08X size 0x%08X data 0x%08X\n%#v\n\n",
			sec.Index(), name, sec.Kind(), sec.Address(), sec.Size(), len(sec.Data()), raw[sec.Index()])
	}
}

func (cmd *DumpCmd) runDumpSymbols(pef *pe.File) {
	exports := pef.Exports()
	fmt.Fprintf(cmd.out, "%d exports:\n\n", len(exports))
	for _, e := range exports {
		switch {
		case e.Forward != "":
			fmt.Fprintf(cmd.out, "  %5d  %-40s -> %s\n", e.Ordinal, e.Name, e.Forward)
		default:
			fmt.Fprintf(cmd.out, "  %5d  %-40s 0x%08X\n", e.Ordinal, e.Name, e.RVA)
		}
	}

	imports := pef.Imports()
	fmt.Fprintf(cmd.out, "\n%d imports:\n\n", len(imports))
	for _, i := range imports {
		if i.ByOrdinal {
			fmt.Fprintf(cmd.out, "  %-24s #%d\n", i.DLL, i.Ordinal)
		} else {
			fmt.Fprintf(cmd.out, "  %-24s %s\n", i.DLL, i.Name)
		}
	}

	m := pef.SymbolMap()
	fmt.Fprintf(cmd.out, "\nSymbol map (%d entries):\n\n", len(m.Symbols))
	for _, s := range m.Symbols {
		fmt.Fprintf(cmd.out, "  0x%08X  %s\n", s.Address, s.Name)
	}
	fmt.Fprintln(cmd.out)
}

func (cmd *DumpCmd) runDumpDebugInfo(pef *pe.File) error {
	dirs, err := pef.DebugDirectory()
	if errors.Is(err, pe.ErrNotPresent) {
		fmt.Fprintf(cmd.out, "No debug directory\n\n")
		return nil
	}
	if err != nil {
		return err
	}

	for i, de := range dirs {
		fmt.Fprintf(cmd.out, "Debug directory %d:\n%#v\n", i, de)
		if de.Type != pe.IMAGE_DEBUG_TYPE_CODEVIEW {
			continue
		}
		cv, err := pef.ExtractCodeViewInfo(de)
		if err != nil {
			cmd.log.WithError(err).Warnf("debug directory %d", i)
			continue
		}
		fmt.Fprintf(cmd.out, "PDB:    %s\nGUID:   %v\nAge:    %d\nSymsrv: %s\n", cv.PDBPath, cv.GUID, cv.Age, cv)
	}
	fmt.Fprintln(cmd.out)
	return nil
}

// NewResourcesCmd creates the resources subcommand
func NewResourcesCmd(parent *DumpCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "resources <filePath>",
		Short: "Lists the resources embedded in a PE binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return parent.runDumpResources(args[0])
		},
	}
}

func (cmd *DumpCmd) runDumpResources(filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	rs, err := winres.LoadFromEXE(f)
	if err != nil {
		return fmt.Errorf("loading resources from %q: %w", filePath, err)
	}

	var count int
	rs.Walk(func(typeID, resID winres.Identifier, langID uint16, data []byte) bool {
		fmt.Fprintf(cmd.out, "  %-16v %-24v lang 0x%04X  %d bytes\n", typeID, resID, langID, len(data))
		count++
		return true
	})
	cmd.log.WithField("resources", count).Debug("walked resource tree")
	return nil
}

func main() {
	if err := NewDumpCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}
