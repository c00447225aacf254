package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pdevine/tensor"
	"github.com/spf13/cobra"

	"github.com/jmorganca/sparserve/format"
	"github.com/jmorganca/sparserve/gpu"
	"github.com/jmorganca/sparserve/ml"
	"github.com/jmorganca/sparserve/model"
	"github.com/jmorganca/sparserve/version"
)

func InfoHandler(cmd *cobra.Command, args []string) error {
	out := os.Stdout

	device := gpu.Discover()
	prettyPrintDevice(out, device)
	fmt.Fprint(out, "\n")
	prettyPrintMethods(out)

	return nil
}

func prettyPrintDevice(out io.Writer, device gpu.DeviceInfo) {
	table := tablewriter.NewWriter(out)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding(" ")
	indent := " "

	data := [][]string{
		{indent, "Version:", version.Version},
		{indent, "Device:", device.Name},
		{indent, "Compute:", strconv.Itoa(device.Capability())},
		{indent, "Memory:", format.HumanBytes(int64(device.TotalMemory))},
	}

	fmt.Fprint(out, "Runner:\n")
	table.AppendBulk(data)
	table.Render()
}

func prettyPrintMethods(out io.Writer) {
	table := tablewriter.NewWriter(out)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding(" ")
	indent := " "

	var data [][]string
	for _, m := range model.Methods() {
		data = append(data, []string{
			indent, m.Name(), m.Format().String(), strconv.Itoa(m.MinCapability()),
		})
	}

	fmt.Fprint(out, "Methods:\n")
	table.AppendBulk(data)
	table.Render()
}

func BenchHandler(cmd *cobra.Command, args []string) error {
	sparsity, _ := cmd.Flags().GetString("sparsity")
	hidden, _ := cmd.Flags().GetInt("hidden")
	intermediate, _ := cmd.Flags().GetInt("intermediate")
	batch, _ := cmd.Flags().GetInt("batch")
	iterations, _ := cmd.Flags().GetInt("iterations")

	c := &model.Config{
		Architectures:    []string{"SparseMLPForCausalLM"},
		HiddenSize:       hidden,
		IntermediateSize: intermediate,
		Sparsity:         sparsity,
	}

	m, err := model.New(c, DefaultRegistry(), gpu.Discover(), model.Options{DType: ml.DTypeF32})
	if err != nil {
		return err
	}

	if err := model.InitDummyWeights(m); err != nil {
		return err
	}

	x := tensor.New(tensor.WithShape(batch, hidden), tensor.Of(tensor.Float32))
	start := time.Now()
	for range iterations {
		if _, err := m.Forward(x); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("%d forward passes of [%d %d] in %s (%s/pass)\n",
		iterations, batch, hidden, elapsed, elapsed/time.Duration(iterations))

	return nil
}
