// secsh is an interactive shell over a single secio descriptor.
//
// Usage:
//
//	secsh [<mode> <path> [perm]]
//
// Commands (in REPL):
//
//	open <mode> <path> [perm]   Open a file (closes the current one)
//	stat                        Show descriptor metadata
//	flags                       Show descriptor status flags
//	read [n]                    Read n bytes at the cursor (default: to EOF)
//	pread <n> <pos>             Read n bytes at pos, cursor untouched
//	write <text>                Write text at the cursor
//	pwrite <text> <pos>         Write text at pos, cursor untouched
//	seek <pos>                  Move the cursor
//	truncate <n>                Resize the file to n bytes
//	lines [delim]               Print delimiter-separated spans (default \n)
//	chunks <n>                  Print fixed-size chunks
//	close                       Close the current descriptor
//	modes                       List the open modes
//	help                        Show this help
//	exit / quit / q             Exit
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/secio/pkg/fd"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	sh := &shell{opener: fd.NewOpener(fd.Options{})}

	if len(args) >= 2 {
		if err := sh.cmdOpen(args); err != nil {
			return err
		}
	}

	return sh.loop()
}

// shell holds the REPL state: one opener and at most one open file.
type shell struct {
	opener *fd.Opener
	file   *fd.File
	path   string
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".secsh_history")
}

func (s *shell) loop() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if f, err := os.Open(historyFile()); err == nil {
		s.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("secsh - interactive descriptor shell")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := s.liner.Prompt(s.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			fmt.Println("Bye!")

			break
		}

		if err := s.dispatch(cmd, args); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}

	s.saveHistory()
	s.closeFile()

	return nil
}

func (s *shell) prompt() string {
	if s.file == nil {
		return "secsh> "
	}

	return fmt.Sprintf("secsh %s@%d> ", filepath.Base(s.path), s.file.Cursor())
}

func (s *shell) dispatch(cmd string, args []string) error {
	switch cmd {
	case "open":
		return s.cmdOpen(args)
	case "stat":
		return s.cmdStat()
	case "flags":
		return s.cmdFlags()
	case "read":
		return s.cmdRead(args)
	case "pread":
		return s.cmdPread(args)
	case "write":
		return s.cmdWrite(args)
	case "pwrite":
		return s.cmdPwrite(args)
	case "seek":
		return s.cmdSeek(args)
	case "truncate":
		return s.cmdTruncate(args)
	case "lines":
		return s.cmdLines(args)
	case "chunks":
		return s.cmdChunks(args)
	case "close":
		s.closeFile()

		return nil
	case "modes":
		s.printModes()

		return nil
	case "help", "?":
		s.printHelp()

		return nil
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

func (s *shell) need() (*fd.File, error) {
	if s.file == nil {
		return nil, errors.New("no open file (use: open <mode> <path> [perm])")
	}

	return s.file, nil
}

func (s *shell) closeFile() {
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			fmt.Printf("close: %v\n", err)
		}

		s.file = nil
		s.path = ""
	}
}

func (s *shell) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			s.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (s *shell) cmdOpen(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: open <mode> <path> [perm]")
	}

	mode, err := fd.ParseOpenMode(args[0])
	if err != nil {
		return err
	}

	perm := uint64(0o644)

	if len(args) >= 3 {
		perm, err = strconv.ParseUint(args[2], 8, 32)
		if err != nil {
			return fmt.Errorf("invalid perm %q: %w", args[2], err)
		}
	}

	f, err := s.opener.Open(args[1], mode, uint32(perm))
	if err != nil {
		return err
	}

	s.closeFile()
	s.file = f
	s.path = args[1]

	fmt.Printf("opened %s (%s, fd %d)\n", args[1], mode, f.Fileno())

	return nil
}

func (s *shell) cmdStat() error {
	f, err := s.need()
	if err != nil {
		return err
	}

	st, err := f.Stat()
	if err != nil {
		return err
	}

	fmt.Printf("  path:   %s\n", s.path)
	fmt.Printf("  fd:     %d\n", f.Fileno())
	fmt.Printf("  size:   %d\n", st.Size)
	fmt.Printf("  mode:   %#o\n", st.Mode)
	fmt.Printf("  inode:  %d\n", st.Ino)
	fmt.Printf("  nlink:  %d\n", st.Nlink)
	fmt.Printf("  uid:    %d\n", st.Uid)
	fmt.Printf("  gid:    %d\n", st.Gid)
	fmt.Printf("  cursor: %d\n", f.Cursor())

	return nil
}

func (s *shell) cmdFlags() error {
	f, err := s.need()
	if err != nil {
		return err
	}

	flags, err := f.Flags()
	if err != nil {
		return err
	}

	fmt.Printf("flags: %#x\n", flags)

	return nil
}

func (s *shell) cmdRead(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	var data []byte

	if len(args) == 0 {
		data, err = f.ReadAll()
	} else {
		var n int64

		n, err = parseInt(args[0], "size")
		if err != nil {
			return err
		}

		data, err = f.Read(n)
	}

	if err != nil {
		return err
	}

	fmt.Printf("%d bytes: %q\n", len(data), data)

	return nil
}

func (s *shell) cmdPread(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	if len(args) != 2 {
		return errors.New("usage: pread <n> <pos>")
	}

	n, err := parseInt(args[0], "size")
	if err != nil {
		return err
	}

	pos, err := parseInt(args[1], "pos")
	if err != nil {
		return err
	}

	data, err := f.Pread(n, pos)
	if err != nil {
		return err
	}

	fmt.Printf("%d bytes at %d: %q\n", len(data), pos, data)

	return nil
}

func (s *shell) cmdWrite(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return errors.New("usage: write <text>")
	}

	n, err := f.Write([]byte(strings.Join(args, " ")))
	if err != nil {
		return err
	}

	fmt.Printf("wrote %d bytes, cursor at %d\n", n, f.Cursor())

	return nil
}

func (s *shell) cmdPwrite(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	if len(args) < 2 {
		return errors.New("usage: pwrite <text> <pos>")
	}

	pos, err := parseInt(args[len(args)-1], "pos")
	if err != nil {
		return err
	}

	n, err := f.Pwrite([]byte(strings.Join(args[:len(args)-1], " ")), pos)
	if err != nil {
		return err
	}

	fmt.Printf("wrote %d bytes at %d\n", n, pos)

	return nil
}

func (s *shell) cmdSeek(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	if len(args) != 1 {
		return errors.New("usage: seek <pos>")
	}

	pos, err := parseInt(args[0], "pos")
	if err != nil {
		return err
	}

	if err := f.MoveTo(pos); err != nil {
		return err
	}

	fmt.Printf("cursor at %d\n", pos)

	return nil
}

func (s *shell) cmdTruncate(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	if len(args) != 1 {
		return errors.New("usage: truncate <n>")
	}

	length, err := parseInt(args[0], "length")
	if err != nil {
		return err
	}

	if err := f.Truncate(length); err != nil {
		return err
	}

	fmt.Printf("truncated to %d, cursor at %d\n", length, f.Cursor())

	return nil
}

func (s *shell) cmdLines(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	delim := []byte("\n")
	if len(args) >= 1 {
		delim = []byte(args[0])
	}

	start := int64(0)

	i := 0
	for span, err := range f.Lines(delim, fd.LinesOptions{Start: &start}) {
		if err != nil {
			return err
		}

		fmt.Printf("  [%d] %q\n", i, span)
		i++
	}

	fmt.Printf("%d spans\n", i)

	return nil
}

func (s *shell) cmdChunks(args []string) error {
	f, err := s.need()
	if err != nil {
		return err
	}

	if len(args) != 1 {
		return errors.New("usage: chunks <n>")
	}

	size, err := parseInt(args[0], "size")
	if err != nil {
		return err
	}

	i := 0
	for chunk, err := range f.Chunks(size, fd.ChunksOptions{}) {
		if err != nil {
			return err
		}

		fmt.Printf("  [%d] %q\n", i, chunk)
		i++
	}

	fmt.Printf("%d chunks\n", i)

	return nil
}

func (s *shell) printModes() {
	modes := []fd.OpenMode{
		fd.ReadNew, fd.ReadExisting, fd.ReadOrCreate,
		fd.WriteNew, fd.WriteExisting, fd.WriteTruncate, fd.WriteOrCreate,
		fd.AppendNew, fd.AppendExisting, fd.AppendTruncate, fd.AppendOrCreate,
	}

	for _, m := range modes {
		fmt.Printf("  %s\n", m)
	}
}

func (s *shell) completer(line string) []string {
	commands := []string{
		"open", "stat", "flags",
		"read", "pread", "write", "pwrite",
		"seek", "truncate", "lines", "chunks",
		"close", "modes", "help",
		"exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (s *shell) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  open <mode> <path> [perm]   Open a file (closes the current one)")
	fmt.Println("  stat                        Show descriptor metadata")
	fmt.Println("  flags                       Show descriptor status flags")
	fmt.Println("  read [n]                    Read n bytes at the cursor (default: to EOF)")
	fmt.Println("  pread <n> <pos>             Read n bytes at pos, cursor untouched")
	fmt.Println("  write <text>                Write text at the cursor")
	fmt.Println("  pwrite <text> <pos>         Write text at pos, cursor untouched")
	fmt.Println("  seek <pos>                  Move the cursor")
	fmt.Println("  truncate <n>                Resize the file to n bytes")
	fmt.Println("  lines [delim]               Print delimiter-separated spans")
	fmt.Println("  chunks <n>                  Print fixed-size chunks")
	fmt.Println("  close                       Close the current descriptor")
	fmt.Println("  modes                       List the open modes")
	fmt.Println("  help                        Show this help")
	fmt.Println("  exit / quit / q             Exit")
	fmt.Println()
}

func parseInt(s, what string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}

	return v, nil
}
