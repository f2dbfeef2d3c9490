// Package ui provides terminal prompting, styling, and paging for the
// continuity CLI.
package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrCanceled is returned when the user interrupts or ends input at a
// prompt. The command lifecycle prints a blank line and aborts.
var ErrCanceled = errors.New("prompt canceled")

var stdinReader struct {
	once  sync.Once
	lines chan string
	errs  chan error
}

// readLine delivers one line from stdin, translating interrupt and
// end-of-input into ErrCanceled. A single persistent reader goroutine feeds
// all prompts so no input is lost between them.
func readLine() (string, error) {
	stdinReader.once.Do(func() {
		stdinReader.lines = make(chan string)
		stdinReader.errs = make(chan error, 1)
		go func() {
			reader := bufio.NewReader(os.Stdin)
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					if line != "" {
						stdinReader.lines <- strings.TrimRight(line, "\r\n")
					}
					stdinReader.errs <- err
					return
				}
				stdinReader.lines <- strings.TrimRight(line, "\r\n")
			}
		}()
	})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	select {
	case line := <-stdinReader.lines:
		return line, nil
	case err := <-stdinReader.errs:
		if errors.Is(err, io.EOF) {
			return "", ErrCanceled
		}
		return "", err
	case <-interrupt:
		return "", ErrCanceled
	}
}

// Prompt asks for a line of input, re-asking until the input or the default
// is non-empty.
func Prompt(message, defaultValue string) (string, error) {
	if defaultValue != "" {
		message = fmt.Sprintf("%s [%s]", message, defaultValue)
	}
	for {
		fmt.Printf("%s: ", message)
		line, err := readLine()
		if err != nil {
			return "", err
		}
		if value := strings.TrimSpace(line); value != "" {
			return value, nil
		}
		if defaultValue != "" {
			return defaultValue, nil
		}
	}
}

// PromptOptional asks for a line of input, accepting empty input.
func PromptOptional(message string) (string, error) {
	fmt.Printf("%s: ", message)
	line, err := readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptChar asks for a single keypress constrained to characters,
// case-insensitively; the canonical case from characters is returned.
// Enter accepts defaultChar when non-zero. Zero means "no selection" for
// optional prompts.
func PromptChar(message string, defaultChar byte, characters string) (byte, error) {
	fmt.Printf("%s ", message)
	for {
		c, err := readChar()
		if err != nil {
			return 0, err
		}
		if c == '\r' || c == '\n' {
			if defaultChar != 0 {
				fmt.Println()
				return defaultChar, nil
			}
			continue
		}
		if i := strings.IndexByte(strings.ToLower(characters), lower(c)); i >= 0 {
			fmt.Println()
			return characters[i], nil
		}
	}
}

// PromptCharOptional is PromptChar with Enter meaning "none selected".
func PromptCharOptional(message string, characters string) (byte, bool, error) {
	fmt.Printf("%s ", message)
	for {
		c, err := readChar()
		if err != nil {
			return 0, false, err
		}
		if c == '\r' || c == '\n' {
			fmt.Println()
			return 0, false, nil
		}
		if i := strings.IndexByte(strings.ToLower(characters), lower(c)); i >= 0 {
			fmt.Println()
			return characters[i], true, nil
		}
	}
}

// readChar reads one raw keypress, translating Ctrl-C/Ctrl-D into
// ErrCanceled. When stdin is not a terminal it falls back to line input and
// uses the first byte.
func readChar() (byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := readLine()
		if err != nil {
			return 0, err
		}
		if line == "" {
			return '\n', nil
		}
		return line[0], nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return 0, fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, oldState) //nolint:errcheck

	var buf [1]byte
	if _, err := os.Stdin.Read(buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrCanceled
		}
		return 0, err
	}
	switch buf[0] {
	case 0x03, 0x04: // Ctrl-C, Ctrl-D
		return 0, ErrCanceled
	}
	return buf[0], nil
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
