// Command depparse parses POS-tagged sentences from stdin, one per line, and
// writes CoNLL-X to stdout. With -eval it parses a gold CoNLL-X file instead
// and reports attachment scores.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/conll"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/model"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/internal/parsing/executor"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Chinese-NLP-Inference-Engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "optional path to config file")
	modelDir := flag.String("models", "", "model directory (overrides config)")
	kind := flag.String("kind", "", "parser kind: beam or greedy (overrides config)")
	beam := flag.Int("beam", 0, "beam size (overrides config)")
	evalPath := flag.String("eval", "", "gold CoNLL-X file to evaluate against")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *modelDir != "" {
		cfg.Model.Dir = *modelDir
	}
	if *kind != "" {
		cfg.Parser.Kind = *kind
	}
	if *beam > 0 {
		cfg.Parser.BeamSize = *beam
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays CoNLL.
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))

	store, err := model.Open(cfg.Model)
	if err != nil {
		slog.Error("failed to open model store", "dir", cfg.Model.Dir, "error", err)
		os.Exit(1)
	}
	exec, err := executor.New(store, cfg.Parser, nil)
	if err != nil {
		slog.Error("failed to build parser", "error", err)
		os.Exit(1)
	}

	if *evalPath != "" {
		err = evaluate(exec, *evalPath, os.Stdout)
	} else {
		err = parseStream(exec, os.Stdin, os.Stdout)
	}
	if err != nil {
		slog.Error("depparse failed", "error", err)
		os.Exit(1)
	}
}

func parseStream(exec *executor.Executor, r io.Reader, w io.Writer) error {
	ctx := context.Background()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens, tags, err := conll.ParseTagged(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		result, err := exec.Execute(ctx, tokens, tags)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := conll.Write(w, tokens, tags, result.Arcs); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func evaluate(exec *executor.Executor, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sentences, err := conll.Read(f)
	if err != nil {
		return err
	}

	ctx := context.Background()
	start := time.Now()
	var total, unlabeled, labeled int
	for i, gold := range sentences {
		result, err := exec.Execute(ctx, gold.Tokens, gold.Tags)
		if err != nil {
			return fmt.Errorf("sentence %d: %w", i+1, err)
		}
		u, l := conll.AttachmentScores(gold, result.Arcs)
		unlabeled += u
		labeled += l
		total += len(gold.Tokens)
	}
	took := time.Since(start)

	if total == 0 {
		fmt.Fprintln(w, "no tokens to evaluate")
		return nil
	}
	fmt.Fprintf(w, "sentences: %d  tokens: %d  parser: %s  beam: %d\n",
		len(sentences), total, exec.Kind(), exec.BeamSize())
	fmt.Fprintf(w, "UAS: %.2f%%  LAS: %.2f%%\n",
		100*float64(unlabeled)/float64(total), 100*float64(labeled)/float64(total))
	fmt.Fprintf(w, "elapsed: %v  (%.0f tokens/s)\n", took.Round(time.Millisecond), float64(total)/took.Seconds())
	return nil
}
