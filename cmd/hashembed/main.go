// Package main provides the hashembed CLI.
//
// Commands:
//
//	version   Show version
//	pool      Read one text per line from stdin and print its pooled vector
//	train     Run SGD steps pulling every line's pooled vector toward zero
//	          (HASHEMBED_STEPS, default 1)
//
// Settings come from HASHEMBED_* environment variables (see internal/config).
// With HASHEMBED_CHECKPOINT set, pool uses the saved table and train resumes
// from it and writes it back.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/config"
	"github.com/born-ml/hashembed/internal/featurize"
	"github.com/born-ml/hashembed/internal/logging"
	"github.com/born-ml/hashembed/internal/nn"
	"github.com/born-ml/hashembed/internal/operators"
	"github.com/born-ml/hashembed/internal/optim"
	"github.com/born-ml/hashembed/internal/parallel"
	"github.com/born-ml/hashembed/internal/serialization"
	"github.com/born-ml/hashembed/internal/tokenizer"
)

const version = "v0.1.0-dev"

func main() {
	cfg := config.Load()
	logger := logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "version":
		fmt.Printf("hashembed %s\n", version)
		return
	case "pool":
		err = runPool(cfg, logger, os.Stdin, os.Stdout)
	case "train":
		err = runTrain(cfg, logger, os.Stdin, os.Stdout)
	default:
		usage()
		return
	}
	if err != nil {
		logger.Error("command failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("hashembed - hashed embedding sequence pooling")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  pool       Pool stdin lines into vectors (JSON lines on stdout)")
	fmt.Println("  train      Fit the table so pooled vectors shrink toward zero")
}

// setup builds the featuriser and embedding layer from cfg.
func setup(cfg config.Config, logger *slog.Logger) (*featurize.Featurizer, *nn.HashEmbedding, error) {
	tok, err := tokenizer.New(cfg.Features.Encoding)
	if err != nil {
		return nil, nil, err
	}
	feat, err := featurize.New(tok, cfg.Features.NGram)
	if err != nil {
		return nil, nil, err
	}
	feat.Lower = cfg.Features.Lower

	//nolint:gosec // math/rand is appropriate for ML weight initialization
	rng := rand.New(rand.NewSource(cfg.Table.Seed))
	embed, err := nn.NewHashEmbedding(cfg.Table.Rows, cfg.Table.Width, cfg.Operator, rng)
	if err != nil {
		return nil, nil, err
	}

	par := parallel.Sequential()
	if cfg.Parallel {
		par = parallel.DefaultConfig()
	}
	embed.WithContext(&operators.Context{Logger: logger, Parallel: par})

	logger.Debug("embedding ready",
		"rows", cfg.Table.Rows,
		"width", cfg.Table.Width,
		"num_hash", cfg.Operator.NumHash,
		"mod_by", cfg.Operator.ModBy,
		"tokenizer", tok.Name(),
		"ngram", cfg.Features.NGram)
	return feat, embed, nil
}

// maxLineSize bounds a single input line.
const maxLineSize = 16 << 20

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, errors.Wrap(sc.Err(), "read input")
}

type pooled struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

func runPool(cfg config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	feat, embed, err := setup(cfg, logger)
	if err != nil {
		return err
	}
	if _, err := restore(cfg.Checkpoint, logger, embed, nil); err != nil {
		return err
	}
	lines, err := readLines(in)
	if err != nil {
		return err
	}
	x, err := feat.Batch(lines)
	if err != nil {
		return err
	}

	vectors, _, err := embed.Forward(x)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	width := embed.OutputWidth()
	data := vectors.AsFloat32()
	for i, line := range lines {
		if err := enc.Encode(pooled{Text: line, Vector: data[i*width : (i+1)*width]}); err != nil {
			return errors.Wrap(err, "write output")
		}
	}
	logger.Info("pooled", "sequences", len(lines), "windows", x.Rows())
	return nil
}

// runTrain minimises 0.5*||Out||^2, whose gradient with respect to Out is
// Out itself.
func runTrain(cfg config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	steps := max(cfg.Train.Steps, 1)
	feat, embed, err := setup(cfg, logger)
	if err != nil {
		return err
	}
	lines, err := readLines(in)
	if err != nil {
		return err
	}
	x, err := feat.Batch(lines)
	if err != nil {
		return err
	}

	sgd := optim.NewSparseSGD[float32](optim.SGDConfig{
		LR:       cfg.Train.LR,
		Momentum: cfg.Train.Momentum,
		ClipNorm: cfg.Train.ClipNorm,
	})
	done, err := restore(cfg.Checkpoint, logger, embed, sgd)
	if err != nil {
		return err
	}

	var loss float64
	for step := 0; step <= steps; step++ {
		pooledOut, ids, err := embed.Forward(x)
		if err != nil {
			return err
		}
		loss = halfSquaredNorm(pooledOut.AsFloat32())
		fmt.Fprintf(out, "step %d loss %.6f\n", done+step, loss)
		if step == steps {
			break
		}

		grad, err := embed.Backward(ids[0], pooledOut)
		if err != nil {
			return err
		}
		if err := sgd.Step(embed.Weight, grad); err != nil {
			return err
		}
		logger.Debug("sgd step", "step", done+step, "rows", len(grad.Rows), "loss", loss)
	}
	return save(cfg, logger, embed, sgd, done+steps, loss)
}

// restore loads a checkpoint into embed (and sgd when non-nil) and returns
// the number of steps already trained. A missing file is not an error.
func restore(path string, logger *slog.Logger, embed *nn.HashEmbedding, sgd *optim.SparseSGD[float32]) (int, error) {
	if path == "" {
		return 0, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("no checkpoint, starting from a fresh table", "path", path)
		return 0, nil
	}
	state, meta, err := serialization.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "load checkpoint %s", path)
	}
	if meta[metaNumHash] != strconv.Itoa(embed.Config.NumHash) || meta[metaModBy] != strconv.Itoa(embed.Config.ModBy) {
		return 0, errors.Errorf("checkpoint %s was trained with num_hash=%s mod_by=%s",
			path, meta[metaNumHash], meta[metaModBy])
	}
	if err := embed.LoadStateDict(state); err != nil {
		return 0, errors.Wrapf(err, "load checkpoint %s", path)
	}
	if sgd != nil {
		if err := sgd.LoadStateDict(state); err != nil {
			return 0, errors.Wrapf(err, "load checkpoint %s", path)
		}
	}
	steps, _ := strconv.Atoi(meta[metaSteps])
	logger.Info("checkpoint loaded", "path", path, "steps", steps)
	return steps, nil
}

// Checkpoint metadata keys.
const (
	metaNumHash = "num_hash"
	metaModBy   = "mod_by"
	metaSteps   = "steps"
	metaLoss    = "loss"
)

func save(cfg config.Config, logger *slog.Logger, embed *nn.HashEmbedding, sgd *optim.SparseSGD[float32], steps int, loss float64) error {
	if cfg.Checkpoint == "" {
		return nil
	}
	state := embed.StateDict()
	for k, v := range sgd.StateDict() {
		state[k] = v
	}
	meta := map[string]string{
		metaNumHash: strconv.Itoa(cfg.Operator.NumHash),
		metaModBy:   strconv.Itoa(cfg.Operator.ModBy),
		metaSteps:   strconv.Itoa(steps),
		metaLoss:    strconv.FormatFloat(loss, 'g', -1, 64),
	}
	if err := serialization.WriteFile(cfg.Checkpoint, state, meta); err != nil {
		return errors.Wrapf(err, "save checkpoint %s", cfg.Checkpoint)
	}
	logger.Info("checkpoint saved", "path", cfg.Checkpoint, "steps", steps)
	return nil
}

func halfSquaredNorm(x []float32) float64 {
	var s float64
	for _, v := range x {
		s += float64(v) * float64(v)
	}
	return s / 2
}
