// Command brain trains multilayer perceptrons and runs them.
//
//	brain train   -network net.json -data data.json -out model.json
//	brain predict -model model.json -input 0.05,0.1
//	brain info    -model model.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openfluke/brain/data"
	"github.com/openfluke/brain/nn"
	"github.com/openfluke/brain/trainer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(os.Args[2:])
	case "predict":
		err = runPredict(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logrus.WithError(err).Fatal(os.Args[1] + " failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: brain <train|predict|info> [flags]")
}

func setVerbosity(verbose bool) {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	networkPath := fs.String("network", "", "JSON network description")
	settingsPath := fs.String("settings", "", "JSON settings, overriding those of the network description")
	dataPath := fs.String("data", "", "JSON training set")
	out := fs.String("out", "model.json", "Where to write the trained model bundle")
	minibatch := fs.Bool("minibatch", false, "Train with random mini-batches instead of single samples")
	normalize := fs.Bool("normalize", false, "Center and scale the input signals")
	ratio := fs.Float64("eval", data.DefaultEvaluatingRatio, "Share of signals held out for evaluation")
	seed := fs.Int64("seed", 0, "Random seed (0 uses the clock)")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)
	setVerbosity(*verbose)

	if *networkPath == "" || *dataPath == "" {
		return errors.New("please provide -network and -data")
	}

	var netOpts []nn.Option
	dataOpts := []data.Option{data.WithEvaluatingRatio(*ratio)}
	if *seed != 0 {
		netOpts = append(netOpts, nn.WithSeed(*seed))
		dataOpts = append(dataOpts, data.WithSeed(*seed))
	}

	network, err := loadNetwork(*networkPath, *settingsPath, netOpts...)
	if err != nil {
		return err
	}

	set, err := data.Load(*dataPath, dataOpts...)
	if err != nil {
		return err
	}
	if *normalize {
		norm := set.Normalize()
		logrus.WithFields(logrus.Fields{
			"means":  norm.Means,
			"sigmas": norm.Sigmas,
		}).Info("inputs normalized")
	}

	log := logrus.WithFields(logrus.Fields{
		"model":   network.ID().String(),
		"signals": set.Len(),
	})

	if *minibatch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		t, err := trainer.New(network, set)
		if err != nil {
			return err
		}
		if err := t.Run(ctx); err != nil {
			log.WithError(err).Warn("training interrupted")
		}
		log.WithFields(logrus.Fields{
			"iterations": t.Iterations(),
			"error":      t.Error(),
			"converged":  t.Converged(),
		}).Info("trained")
	} else {
		result, err := network.Train(set)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"iterations": result.Iterations,
			"error":      result.FinalError,
			"best":       result.BestError,
			"converged":  result.Converged,
			"time":       result.TotalTime,
		}).Info("trained")
	}

	eval, err := network.Evaluate(set)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"mean_error": eval.MeanError,
		"score":      eval.Score,
		"failures":   eval.Failures,
	}).Info("evaluated")

	if err := network.SaveModel(*out); err != nil {
		return err
	}
	log.WithField("path", *out).Info("model saved")
	return nil
}

func loadNetwork(networkPath, settingsPath string, opts ...nn.Option) (*nn.Network, error) {
	raw, err := os.ReadFile(networkPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read network description")
	}
	var config nn.NetworkConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode network description")
	}

	if settingsPath != "" {
		f, err := os.Open(settingsPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open settings")
		}
		defer f.Close()

		s, err := nn.ReadSettings(f)
		if err != nil {
			return nil, err
		}
		def := s.Definition()
		config.Settings = &def
	}

	return nn.BuildNetwork(config, opts...)
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	modelPath := fs.String("model", "model.json", "Model bundle written by train")
	modelID := fs.String("id", "", "Model ID inside the bundle (first model when empty)")
	input := fs.String("input", "", "Comma separated input signal")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)
	setVerbosity(*verbose)

	in, err := parseSignal(*input)
	if err != nil {
		return err
	}

	network, err := nn.LoadModel(*modelPath, *modelID)
	if err != nil {
		return err
	}
	output, err := network.Predict(in)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(output)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	modelPath := fs.String("model", "model.json", "Model bundle")
	fs.Parse(args)

	bundle, err := nn.LoadBundle(*modelPath)
	if err != nil {
		return err
	}

	networks := make([]*nn.Network, 0, len(bundle.Models))
	for _, saved := range bundle.Models {
		network, err := nn.DeserializeModel(saved)
		if err != nil {
			return errors.Wrapf(err, "model %s", saved.ID)
		}
		networks = append(networks, network)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(nn.ExtractBlueprint(networks...))
}

func parseSignal(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("please provide -input")
	}

	parts := strings.Split(s, ",")
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "input component %d", i)
		}
		values[i] = v
	}
	return values, nil
}
