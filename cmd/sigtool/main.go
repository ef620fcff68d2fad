// Command sigtool generates P-256 keys and signs and verifies files with
// them, without a server.
//
//	sigtool demo [-message s]
//	sigtool keygen -out key.pem [-pub pub.pem] [-encrypt]
//	sigtool pubkey -key key.pem [-format spki|uncompressed]
//	sigtool sign -key key.pem -in file [-out sig.pem]
//	sigtool verify -pub pub.pem -in file -sig sig.pem
//
// verify exits 0 when the signature is valid, 1 when it is not and 2 when
// the input is malformed or the command line is wrong.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/glinharesb/ecsign/internal/crypto"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const passphraseEnv = "ECSIGN_PASSPHRASE"

type cli struct {
	// stdin is shared by passphrase and message reads so neither loses
	// bytes the other has buffered.
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	rand   crypto.RandomSource

	// promptPassphrase reads a secret without echo. It is nil when stdin is
	// not a terminal, and the passphrase is then the first line of stdin.
	promptPassphrase func(prompt string) ([]byte, error)
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	c := &cli{
		stdin:  bufio.NewReader(os.Stdin),
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		rand:   crypto.SystemRandom(),
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		c.promptPassphrase = terminalPassphrase
	}
	os.Exit(c.run(os.Args[1:]))
}

func (c *cli) run(args []string) int {
	if len(args) == 0 {
		c.usage()
		return exitUsage
	}

	var cmd func([]string) int
	switch args[0] {
	case "demo":
		cmd = c.demo
	case "keygen":
		cmd = c.keygen
	case "pubkey":
		cmd = c.pubkey
	case "sign":
		cmd = c.sign
	case "verify":
		cmd = c.verify
	case "help", "-h", "-help", "--help":
		c.usage()
		return exitOK
	default:
		fmt.Fprintf(c.stderr, "sigtool: unknown command %q\n", args[0])
		c.usage()
		return exitUsage
	}
	return cmd(args[1:])
}

func (c *cli) usage() {
	fmt.Fprint(c.stderr, `usage: sigtool <command> [flags]

commands:
  demo     generate a key, sign a message and verify it
  keygen   generate a private key file
  pubkey   print the public key of a private key file
  sign     sign a file
  verify   verify a file against a signature
`)
}

func (c *cli) fail(format string, args ...any) int {
	fmt.Fprintf(c.stderr, "sigtool: "+format+"\n", args...)
	return exitFailure
}

// passphrase returns the key passphrase, preferring the environment.
func (c *cli) passphrase(prompt string) ([]byte, error) {
	if v := c.getenv(passphraseEnv); v != "" {
		return []byte(v), nil
	}
	if c.promptPassphrase != nil {
		return c.promptPassphrase(prompt)
	}
	return readLine(c.stdin)
}

func terminalPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// readLine consumes one line from r, leaving the rest for later reads.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
