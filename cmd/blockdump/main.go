// blockdump inspects a single encoded block: dump every entry, run one seek,
// print the middle key, or poke at the block interactively. The file may be
// stored snappy- or zstd-compressed; decompression happens before the bytes
// reach the decoder, exactly as the table reader would do it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/StrataDB/strata/pkg/block"
	"github.com/StrataDB/strata/pkg/block/hashindex"
	"github.com/StrataDB/strata/pkg/common/iterator"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem("first"),
	readline.PcItem("last"),
	readline.PcItem("next"),
	readline.PcItem("prev"),
	readline.PcItem("seek"),
	readline.PcItem("middle"),
	readline.PcItem("usage"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

// Config holds the parsed command line options
type Config struct {
	Path        string
	Compression string
	TotalOrder  bool
	PrefixLen   int
	SeekTarget  string
	MiddleKey   bool
	Interactive bool
}

func parseFlags() Config {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "blockdump - inspect an encoded sorted-string-table block\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: blockdump [options] <block-file>\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "With no action flag, every entry is dumped in order.\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}

	compression := flag.String("compression", "none", "Compression of the stored file: none, snappy or zstd")
	totalOrder := flag.Bool("total-order", false, "Bypass seek accelerators and always binary search")
	prefixLen := flag.Int("prefix-len", 0, "Build a hash index over fixed prefixes of this length (0 disables)")
	seekTarget := flag.String("seek", "", "Seek to the first key >= this target and print it")
	middleKey := flag.Bool("middle-key", false, "Print the block's middle key and exit")
	interactive := flag.Bool("i", false, "Interactive mode")

	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	return Config{
		Path:        flag.Arg(0),
		Compression: *compression,
		TotalOrder:  *totalOrder,
		PrefixLen:   *prefixLen,
		SeekTarget:  *seekTarget,
		MiddleKey:   *middleKey,
		Interactive: *interactive,
	}
}

func main() {
	config := parseFlags()

	contents, err := readBlockFile(config.Path, config.Compression)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", config.Path, err)
		os.Exit(1)
	}

	b := block.NewBlock(contents)
	if !b.Valid() {
		fmt.Fprintf(os.Stderr, "Error: %v\n", block.ErrBadBlockContents)
		os.Exit(1)
	}
	if config.PrefixLen > 0 {
		if err := attachHashIndex(b, config.PrefixLen); err != nil {
			fmt.Fprintf(os.Stderr, "Error building hash index: %v\n", err)
			os.Exit(1)
		}
	}

	it := b.NewIterator(block.BytewiseComparator, nil, config.TotalOrder)

	switch {
	case config.MiddleKey:
		key, err := b.MiddleKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%q\n", key)
	case config.SeekTarget != "":
		it.Seek([]byte(config.SeekTarget))
		if err := printCurrent(it); err != nil {
			os.Exit(1)
		}
	case config.Interactive:
		runInteractive(b, it, config.Path)
	default:
		if err := dumpAll(it); err != nil {
			os.Exit(1)
		}
	}
}

// readBlockFile loads the file and undoes its storage compression.
func readBlockFile(path, compression string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch compression {
	case "none":
		return raw, nil
	case "snappy":
		decoded, err := snappy.Decode(nil, raw)
		if err != nil {
			return nil, fmt.Errorf("snappy decode: %w", err)
		}
		return decoded, nil
	case "zstd":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		decoded, err := dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

// attachHashIndex builds a fixed-prefix hash index from the block's own
// entries and attaches it.
func attachHashIndex(b *block.Block, prefixLen int) error {
	builder := hashindex.NewBuilder(hashindex.FixedPrefix(prefixLen))
	it := b.NewIterator(block.BytewiseComparator, nil, true)
	for it.SeekToFirst(); it.Valid(); it.Next() {
		builder.Add(it.Key(), it.RestartIndex())
	}
	if err := it.Error(); err != nil {
		return err
	}
	index, err := builder.Finish()
	if err != nil {
		return err
	}
	b.SetHashIndex(index)
	return nil
}

func dumpAll(it iterator.Iterator) error {
	n := 0
	for it.SeekToFirst(); it.Valid(); it.Next() {
		fmt.Printf("%q = %q\n", it.Key(), it.Value())
		n++
	}
	if err := it.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Error after %d entries: %v\n", n, err)
		return err
	}
	fmt.Printf("%d entries\n", n)
	return nil
}

func printCurrent(it iterator.Iterator) error {
	if err := it.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	if !it.Valid() {
		fmt.Println("(invalid)")
		return nil
	}
	fmt.Printf("%q = %q\n", it.Key(), it.Value())
	return nil
}

const helpText = `
Commands:
  first            - Position at the first entry
  last             - Position at the last entry
  next             - Step forward
  prev             - Step backward
  seek KEY         - Position at the first key >= KEY
  middle           - Print the block's middle key
  usage            - Print approximate memory usage
  help             - Show this help message
  exit             - Exit
`

func runInteractive(b *block.Block, it *block.Iter, path string) {
	fmt.Printf("blockdump: %s (%d bytes)\n", path, b.Size())
	fmt.Println("Enter help for usage hints.")

	historyFile := filepath.Join(os.TempDir(), ".blockdump_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "block> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, readErr := rl.Readline()
		if readErr != nil {
			if errors.Is(readErr, readline.ErrInterrupt) {
				if len(line) == 0 {
					break
				}
				continue
			}
			if readErr == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", readErr)
			break
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch strings.ToLower(cmd) {
		case "":
			continue
		case "exit", "quit":
			return
		case "help":
			fmt.Print(helpText)
		case "first":
			it.SeekToFirst()
			printCurrent(it)
		case "last":
			it.SeekToLast()
			printCurrent(it)
		case "next":
			if !it.Valid() {
				fmt.Println("(invalid)")
				continue
			}
			it.Next()
			printCurrent(it)
		case "prev":
			if !it.Valid() {
				fmt.Println("(invalid)")
				continue
			}
			it.Prev()
			printCurrent(it)
		case "seek":
			it.Seek([]byte(arg))
			printCurrent(it)
		case "middle":
			key, err := b.MiddleKey()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("%q\n", key)
		case "usage":
			fmt.Printf("%d bytes\n", b.ApproximateMemoryUsage())
		default:
			fmt.Fprintf(os.Stderr, "Unknown command %q (try help)\n", cmd)
		}

		if err := it.Error(); err != nil {
			fmt.Fprintf(os.Stderr, "Iterator is corrupt: %v\n", err)
			return
		}
	}
}
