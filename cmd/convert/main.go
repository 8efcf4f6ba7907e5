// Command convert massages raw dataset files into query[,category]
// CSV files (txt2csv output is the headerless shape internal/evaluate reads),
// mirroring original_source/converter.py's process_csv and
// convert_txt_to_csv utilities.
//
// No CLI flag-parsing library appears anywhere in the example pack (the
// teacher's services are long-running daemons configured entirely by
// environment variables), so this one-shot file utility uses the
// standard library's flag package out of necessity.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harooos/tdrcluster/internal/common"
)

func main() {
	common.InitSlog()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "csv":
		err = runProcessCSV(os.Args[2:])
	case "txt2csv":
		err = runTxtToCSV(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("convert failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: convert csv -in <path> -out <path> -columns col1,col2  |  convert txt2csv -in <path> -out <path>")
}

// runProcessCSV reads a CSV file, keeps only the requested columns, and
// writes the trimmed CSV, matching converter.py's process_csv.
func runProcessCSV(args []string) error {
	fs := flag.NewFlagSet("csv", flag.ExitOnError)
	in := fs.String("in", "", "input CSV path")
	out := fs.String("out", "", "output CSV path")
	columnsFlag := fs.String("columns", "", "comma-separated columns to keep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *columnsFlag == "" {
		usage()
		return fmt.Errorf("csv: -in, -out, and -columns are required")
	}
	columns := common.SplitCommaSeparated(*columnsFlag)

	return processCSV(*in, *out, columns)
}

func processCSV(inputPath, outputPath string, columnsToKeep []string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input csv %s: %w", inputPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", inputPath, err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}
	var missing []string
	keepIdx := make([]int, 0, len(columnsToKeep))
	for _, col := range columnsToKeep {
		idx, ok := colIdx[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		keepIdx = append(keepIdx, idx)
	}
	if len(missing) > 0 {
		return fmt.Errorf("columns not found in %s: %s", inputPath, strings.Join(missing, ", "))
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output csv %s: %w", outputPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()

	trimmedHeader := make([]string, len(keepIdx))
	for i, idx := range keepIdx {
		trimmedHeader[i] = header[idx]
	}
	if err := w.Write(trimmedHeader); err != nil {
		return err
	}

	rows := 0
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		trimmed := make([]string, len(keepIdx))
		for i, idx := range keepIdx {
			if idx < len(row) {
				trimmed[i] = row[idx]
			}
		}
		if err := w.Write(trimmed); err != nil {
			return fmt.Errorf("write row %d: %w", rows, err)
		}
		rows++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	slog.Info("processed csv", "input", inputPath, "output", outputPath, "columns", columnsToKeep, "rows", rows)
	return nil
}

var txtLinePattern = regexp.MustCompile(`^(\d+)\s+(.*)$`)

// runTxtToCSV mirrors converter.py's convert_txt_to_csv: each input line
// is "<label> <text>"; the output CSV writes text first, label second.
func runTxtToCSV(args []string) error {
	fs := flag.NewFlagSet("txt2csv", flag.ExitOnError)
	in := fs.String("in", "", "input txt path")
	out := fs.String("out", "", "output CSV path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		usage()
		return fmt.Errorf("txt2csv: -in and -out are required")
	}
	return txtToCSV(*in, *out)
}

func txtToCSV(inputPath, outputPath string) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input txt %s: %w", inputPath, err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output csv %s: %w", outputPath, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()

	rows, skipped := 0, 0
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := txtLinePattern.FindStringSubmatch(line)
		if match == nil {
			skipped++
			slog.Warn("skipping malformed line", "line", line)
			continue
		}
		number, text := match[1], match[2]
		if err := w.Write([]string{text, number}); err != nil {
			return fmt.Errorf("write row %d: %w", rows, err)
		}
		rows++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	slog.Info("converted txt to csv", "input", inputPath, "output", outputPath, "rows", rows, "skipped", skipped)
	return nil
}
