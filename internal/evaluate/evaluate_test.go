package evaluate

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestEvaluateIdenticalLabelingsScorePerfect(t *testing.T) {
	labels := []string{"A", "A", "A", "B", "B", "B", "C", "C", "C", "C"}
	result, err := Evaluate(labels, labels)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !almostEqual(result.NMI, 1.0, 1e-9) {
		t.Errorf("NMI = %v, want 1.0 for identical labelings", result.NMI)
	}
	if !almostEqual(result.AMI, 1.0, 1e-6) {
		t.Errorf("AMI = %v, want 1.0 for identical labelings", result.AMI)
	}
}

func TestEvaluateSingleClusterScoresZero(t *testing.T) {
	trueLabels := []string{"A", "A", "B", "B"}
	predLabels := []string{"X", "X", "X", "X"}

	result, err := Evaluate(trueLabels, predLabels)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !almostEqual(result.MI, 0.0, 1e-9) {
		t.Errorf("MI = %v, want 0 when prediction is a single cluster", result.MI)
	}
	if !almostEqual(result.NMI, 0.0, 1e-9) {
		t.Errorf("NMI = %v, want 0 when prediction is a single cluster", result.NMI)
	}
}

func TestEvaluateLengthMismatch(t *testing.T) {
	_, err := Evaluate([]string{"A"}, []string{"A", "B"})
	if err == nil {
		t.Fatal("Evaluate() expected error on mismatched lengths")
	}
}

func TestEvaluateEmptyInput(t *testing.T) {
	_, err := Evaluate(nil, nil)
	if err == nil {
		t.Fatal("Evaluate() expected error on empty input")
	}
}

func TestEvaluateImperfectAgreementBetweenExtremes(t *testing.T) {
	trueLabels := []string{"A", "A", "A", "B", "B", "B", "C", "C", "C", "C"}
	predLabels := []string{"X", "X", "Y", "Y", "Y", "Y", "Z", "Z", "Z", "Z"}

	result, err := Evaluate(trueLabels, predLabels)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.NMI <= 0 || result.NMI >= 1 {
		t.Errorf("NMI = %v, want strictly between 0 and 1 for partial agreement", result.NMI)
	}
	if result.AMI >= result.NMI {
		t.Errorf("AMI = %v, NMI = %v, want AMI < NMI once chance agreement is subtracted", result.AMI, result.NMI)
	}
}

func TestEntropyUniformMaximizesAtLogN(t *testing.T) {
	counts := []int{1, 1, 1, 1}
	h := entropy(counts, 4)
	want := math.Log(4)
	if !almostEqual(h, want, 1e-9) {
		t.Errorf("entropy(uniform-4) = %v, want %v", h, want)
	}
}

func TestEntropySingleClusterIsZero(t *testing.T) {
	h := entropy([]int{5}, 5)
	if !almostEqual(h, 0, 1e-9) {
		t.Errorf("entropy(single cluster) = %v, want 0", h)
	}
}

func TestParseLabelsSkipsShortRows(t *testing.T) {
	csvBody := "q1,A\nq2,B\nmalformed\nq3,C\n"
	labels, err := parseLabels(strings.NewReader(csvBody))
	if err != nil {
		t.Fatalf("parseLabels() error = %v", err)
	}
	if len(labels) != 3 {
		t.Fatalf("got %d labels, want 3 (malformed row skipped)", len(labels))
	}
	if labels["q2"] != "B" {
		t.Errorf("labels[q2] = %q, want B", labels["q2"])
	}
}

func TestEvaluateFilesMissingFilesIsError(t *testing.T) {
	_, err := EvaluateFiles("/nonexistent/ground_truth.csv", "/nonexistent/predictions.csv")
	if err == nil {
		t.Fatal("EvaluateFiles() expected error for nonexistent files")
	}
}
