// Command huffrle compresses text files with Huffman coding followed by
// run-length coding, and restores them.
//
//	huffrle compress   -in FILE (-payload FILE -table FILE | -archive FILE) [-codec auto|raw|flate|zstd] [-use-table FILE]
//	huffrle decompress (-payload FILE -table FILE | -archive FILE) [-out FILE]
//	huffrle stats      -in FILE
//
// A file name of "-" means standard input or standard output.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/seiflotfy/huffrle"
	"github.com/seiflotfy/huffrle/huffman"
)

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "compress":
		err = runCompress(os.Args[2:])
	case "decompress":
		err = runDecompress(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	switch {
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	case err != nil:
		slog.Error("huffrle failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: huffrle compress|decompress|stats [flags]\n")
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runCompress(args []string) error {
	fs := flag.NewFlagSet("compress", flag.ContinueOnError)
	in := fs.String("in", "-", "input text file")
	payloadPath := fs.String("payload", "", "output payload file (count:bit text)")
	tablePath := fs.String("table", "", "output code table file")
	archivePath := fs.String("archive", "", "output binary archive file")
	codecName := fs.String("codec", "auto", "archive run codec: auto, raw, flate or zstd")
	useTable := fs.String("use-table", "", "encode with an existing code table file instead of building one")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogger(*verbose)

	if *archivePath == "" && (*payloadPath == "" || *tablePath == "") {
		fmt.Fprintln(os.Stderr, "compress: need -archive or both -payload and -table")
		return errUsage
	}
	codec, err := huffrle.ParseCodec(*codecName)
	if err != nil {
		return err
	}
	opts := []huffrle.Option{huffrle.WithPayloadCodec(codec)}

	text, err := readInput(*in)
	if err != nil {
		return err
	}

	var artifact *huffrle.Artifact
	if *useTable != "" {
		table, err := readTableFile(*useTable)
		if err != nil {
			return err
		}
		model, err := huffrle.ModelFromTable(table, opts...)
		if err != nil {
			return err
		}
		artifact, err = model.Encode(text)
		if err != nil {
			return err
		}
	} else {
		artifact, err = huffrle.NewEncoder(opts...).Compress(text)
		if err != nil {
			return err
		}
	}

	if *archivePath != "" {
		if err := writeOutput(*archivePath, artifact.WriteTo); err != nil {
			return err
		}
		slog.Debug("wrote archive", "path", *archivePath)
	}
	if *payloadPath != "" {
		if err := writeOutput(*payloadPath, artifact.WritePayload); err != nil {
			return err
		}
		slog.Debug("wrote payload", "path", *payloadPath, "runs", len(artifact.Runs))
	}
	if *tablePath != "" {
		if err := writeOutput(*tablePath, artifact.WriteTable); err != nil {
			return err
		}
		slog.Debug("wrote code table", "path", *tablePath, "symbols", len(artifact.Table))
	}

	logStats(artifact.Stats)
	return nil
}

func runDecompress(args []string) error {
	fs := flag.NewFlagSet("decompress", flag.ContinueOnError)
	payloadPath := fs.String("payload", "", "input payload file (count:bit text)")
	tablePath := fs.String("table", "", "input code table file")
	archivePath := fs.String("archive", "", "input binary archive file")
	out := fs.String("out", "-", "output text file")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogger(*verbose)

	var artifact *huffrle.Artifact
	switch {
	case *archivePath != "":
		f, err := openInput(*archivePath)
		if err != nil {
			return err
		}
		defer f.Close()
		artifact = &huffrle.Artifact{}
		if _, err := artifact.ReadFrom(f); err != nil {
			return fmt.Errorf("read archive %s: %w", *archivePath, err)
		}
	case *payloadPath != "" && *tablePath != "":
		p, err := openInput(*payloadPath)
		if err != nil {
			return err
		}
		defer p.Close()
		t, err := openInput(*tablePath)
		if err != nil {
			return err
		}
		defer t.Close()
		artifact, err = huffrle.LoadArtifact(p, t)
		if err != nil {
			return err
		}
	default:
		fmt.Fprintln(os.Stderr, "decompress: need -archive or both -payload and -table")
		return errUsage
	}

	text, err := huffrle.Decompress(artifact)
	if err != nil {
		return err
	}
	slog.Debug("decompressed", "symbols", len(text))
	return writeOutput(*out, func(w io.Writer) (int64, error) {
		n, err := io.WriteString(w, text)
		return int64(n), err
	})
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	in := fs.String("in", "-", "input text file")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogger(*verbose)

	text, err := readInput(*in)
	if err != nil {
		return err
	}
	artifact, err := huffrle.Compress(text)
	if err != nil {
		return err
	}

	freqs := huffman.Count(text)
	root := huffman.Build(freqs)
	slog.Info("tree", "symbols", root.Leaves(), "depth", root.Depth())
	for _, s := range artifact.Table.Symbols() {
		fmt.Printf("%s\t%d\t%s\n", strconv.Quote(string([]byte{s})), freqs[s], artifact.Table[s])
	}
	logStats(artifact.Stats)
	return nil
}

func logStats(s huffrle.Stats) {
	slog.Info("compression",
		"original_bits", s.OriginalBits,
		"huffman_bits", s.HuffmanBits,
		"compressed_bits", s.CompressedBits,
		"huffman_ratio", fmt.Sprintf("%.2f%%", s.HuffmanRatio),
		"ratio", fmt.Sprintf("%.2f%%", s.Ratio),
		"elapsed", s.Elapsed,
	)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func readInput(path string) (string, error) {
	f, err := openInput(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func readTableFile(path string) (huffman.CodeTable, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	table, err := huffman.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("read code table %s: %w", path, err)
	}
	return table, nil
}

func writeOutput(path string, write func(io.Writer) (int64, error)) error {
	if path == "-" {
		_, err := write(os.Stdout)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
