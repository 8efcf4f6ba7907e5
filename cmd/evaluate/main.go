// Command evaluate scores a predicted category assignment against a
// ground-truth label file, the standalone reporting tool
// original_source/services/evaluation_service.py shipped outside the
// core clustering loop.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/harooos/tdrcluster/internal/common"
	"github.com/harooos/tdrcluster/internal/evaluate"
)

func main() {
	common.InitSlog()

	groundTruth := flag.String("ground-truth", "", "path to ground truth labels (query,label CSV)")
	predictions := flag.String("predictions", "", "path to predicted labels (query,label CSV)")
	flag.Parse()

	if *groundTruth == "" || *predictions == "" {
		fmt.Fprintln(os.Stderr, "usage: evaluate -ground-truth <path> -predictions <path>")
		os.Exit(1)
	}

	result, err := evaluate.EvaluateFiles(*groundTruth, *predictions)
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		slog.Error("failed to encode result", "error", err)
		os.Exit(1)
	}

	slog.Info("clustering evaluation complete", "mi", result.MI, "nmi", result.NMI, "ami", result.AMI)
}
