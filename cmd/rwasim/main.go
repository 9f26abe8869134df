// Command rwasim estimates the blocking probability of a wavelength-routed optical
// network.
//
//	rwasim [flags] <graph file> <num wavelengths>
//	rwasim -generate <vertices>,<edges>
//
// The graph file is either a yaml/json topology description or the plain edge
// list format: a "vertices edges" header followed by one "a b" line per edge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iti/rwasim"
	"github.com/iti/rwasim/internal/logging"
)

var errUsage = errors.New("usage: rwasim [flags] <graph filename> <num wavelengths>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

// options are the command line settings that are not simulation parameters
type options struct {
	paramsFile string
	dotFile    string
	traceFile  string
	metrics    string
	generate   string
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rwasim", flag.ContinueOnError)
	params := rwasim.DefaultSimParams()
	var opts options

	fs.StringVar(&opts.paramsFile, "params", "", "yaml or json file of simulation parameters, overridden by flags")
	fs.Float64Var(&params.Lambda, "lambda", params.Lambda, "mean arrival rate of connections per second")
	fs.Float64Var(&params.Lambda, "l", params.Lambda, "shorthand for -lambda")
	fs.Float64Var(&params.DurationMean, "duration", params.DurationMean, "mean duration of connections in seconds")
	fs.Float64Var(&params.DurationMean, "d", params.DurationMean, "shorthand for -duration")
	fs.IntVar(&params.Limit, "total", params.Limit, "total number of connections to observe")
	fs.IntVar(&params.Limit, "t", params.Limit, "shorthand for -total")
	fs.IntVar(&params.WarmUp, "warmup", params.WarmUp, "connections to discard before observing (0 = 10% of total)")
	fs.BoolVar(&params.Converter, "converter", params.Converter, "whether resources have wavelength converters")
	fs.BoolVar(&params.Converter, "c", params.Converter, "shorthand for -converter")
	fs.StringVar(&params.Placement, "placement", params.Placement, "element carrying the wavelengths: links or nodes")
	fs.StringVar(&params.Seed, "seed", params.Seed, "name of the random number streams")
	fs.IntVar(&params.Replications, "reps", params.Replications, "number of independent replications")
	fs.StringVar(&opts.dotFile, "output", "graph.dot", "name of the output file for visualizing the graph, empty for none")
	fs.StringVar(&opts.dotFile, "o", "graph.dot", "shorthand for -output")
	fs.StringVar(&opts.traceFile, "trace", "", "yaml or json file to write the connection trace to")
	fs.StringVar(&opts.metrics, "metrics", "", "file to write Prometheus metrics to, in text format")
	fs.StringVar(&opts.generate, "generate", "", "print a random edge list with <vertices>,<edges> and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.generate != "" {
		return generate(opts.generate, params.Seed, stdout)
	}

	if fs.NArg() < 2 {
		fs.Usage()
		return errUsage
	}

	wavelengths, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("num wavelengths %q: %w", fs.Arg(1), err)
	}
	params.Wavelengths = wavelengths

	if opts.paramsFile != "" {
		params, err = mergeParamsFile(fs, opts.paramsFile, params)
		if err != nil {
			return err
		}
	}
	if err := params.Validate(); err != nil {
		return err
	}

	logger := logging.NewFromEnv()

	desc, err := rwasim.LoadTopoDesc(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("error opening graph file: %w", err)
	}

	if opts.dotFile != "" {
		if err := writeDOT(desc, params, opts.dotFile); err != nil {
			return err
		}
	}

	exp := rwasim.Experiment{Logger: logger}
	reg := prometheus.NewRegistry()
	if opts.metrics != "" {
		exp.Metrics, err = rwasim.CreateMetrics(reg)
		if err != nil {
			return err
		}
	}
	if opts.traceFile != "" {
		exp.TraceMgr = rwasim.CreateTraceManager(desc.Name, true)
	}

	summary, err := rwasim.RunReplications(ctx, desc, params, exp)
	if err != nil {
		return err
	}

	if len(summary.Results) > 1 {
		fmt.Fprintf(stdout, "%g %% ± %g %%\n", summary.Mean*100, summary.HalfWidth*100)
	} else {
		fmt.Fprintf(stdout, "%g %%\n", summary.Mean*100)
	}

	if exp.TraceMgr != nil {
		if _, err := exp.TraceMgr.WriteToFile(opts.traceFile); err != nil {
			return err
		}
	}
	if opts.metrics != "" {
		if err := prometheus.WriteToTextfile(opts.metrics, reg); err != nil {
			return err
		}
	}
	return nil
}

// mergeParamsFile reads the parameter file and re-applies on top of it the flags
// given explicitly on the command line, and the wavelength count argument
func mergeParamsFile(fs *flag.FlagSet, filename string, cmdline rwasim.SimParams) (rwasim.SimParams, error) {
	useYAML := !strings.HasSuffix(strings.ToLower(filename), ".json")
	fromFile, err := rwasim.ReadSimParams(filename, useYAML, nil)
	if err != nil {
		return cmdline, fmt.Errorf("reading %s: %w", filename, err)
	}

	merged := *fromFile
	merged.Wavelengths = cmdline.Wavelengths
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lambda", "l":
			merged.Lambda = cmdline.Lambda
		case "duration", "d":
			merged.DurationMean = cmdline.DurationMean
		case "total", "t":
			merged.Limit = cmdline.Limit
		case "warmup":
			merged.WarmUp = cmdline.WarmUp
		case "converter", "c":
			merged.Converter = cmdline.Converter
		case "placement":
			merged.Placement = cmdline.Placement
		case "seed":
			merged.Seed = cmdline.Seed
		case "reps":
			merged.Replications = cmdline.Replications
		}
	})
	return merged, nil
}

// writeDOT saves the graph structure for visualization
func writeDOT(desc *rwasim.TopoDesc, params rwasim.SimParams, filename string) error {
	topo, err := rwasim.CreateTopology(desc, params.Wavelengths, params.Converter, params.ResourcePlacement())
	if err != nil {
		return err
	}
	bytes, err := topo.MarshalDOT("")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// generate prints a random edge list; arg is "<vertices>,<edges>"
func generate(arg, seed string, stdout io.Writer) error {
	parts := strings.Split(arg, ",")
	if len(parts) != 2 {
		return fmt.Errorf("-generate wants <vertices>,<edges>, got %q", arg)
	}
	numNodes, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("vertices: %w", err)
	}
	numEdges, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("edges: %w", err)
	}

	desc, err := rwasim.GenerateTopoDesc("generated", numNodes, numEdges, rwasim.NewSource(seed))
	if err != nil {
		return err
	}
	return desc.WriteEdgeList(stdout)
}
