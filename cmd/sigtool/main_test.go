package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glinharesb/ecsign/internal/crypto"
)

type testCLI struct {
	*cli
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestCLI(env map[string]string) *testCLI {
	var stdout, stderr bytes.Buffer
	return &testCLI{
		cli: &cli{
			stdin:  bufio.NewReader(strings.NewReader("")),
			stdout: &stdout,
			stderr: &stderr,
			getenv: func(k string) string { return env[k] },
			rand:   crypto.SystemRandom(),
		},
		stdout: &stdout,
		stderr: &stderr,
	}
}

func (c *testCLI) mustRun(t *testing.T, want int, args ...string) string {
	t.Helper()
	c.stdout.Reset()
	c.stderr.Reset()
	if got := c.run(args); got != want {
		t.Fatalf("sigtool %s: exit %d, want %d\nstderr: %s", strings.Join(args, " "), got, want, c.stderr)
	}
	return c.stdout.String()
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDemo(t *testing.T) {
	c := newTestCLI(nil)
	out := c.mustRun(t, exitOK, "demo")

	if !strings.HasPrefix(out, "Signature in hex: ") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, `Verify "hello, world": VALID`) {
		t.Errorf("missing valid line:\n%s", out)
	}
	if !strings.Contains(out, `Verify "hello, world!": INVALID`) {
		t.Errorf("missing invalid line:\n%s", out)
	}
}

func TestKeygenSignVerify(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key.pem")
	pub := filepath.Join(dir, "pub.pem")
	sigFile := filepath.Join(dir, "sig.pem")
	msg := writeTemp(t, dir, "msg.txt", "hello, world")
	tampered := writeTemp(t, dir, "tampered.txt", "hello, world!")

	c := newTestCLI(nil)
	c.mustRun(t, exitOK, "keygen", "-out", key, "-pub", pub)
	sigHex := strings.TrimSpace(c.mustRun(t, exitOK, "sign", "-key", key, "-in", msg, "-out", sigFile))

	if out := c.mustRun(t, exitOK, "verify", "-pub", pub, "-in", msg, "-sig", sigFile); strings.TrimSpace(out) != "VALID" {
		t.Errorf("verify output = %q", out)
	}
	if out := c.mustRun(t, exitFailure, "verify", "-pub", pub, "-in", tampered, "-sig", sigFile); strings.TrimSpace(out) != "INVALID" {
		t.Errorf("verify output = %q", out)
	}

	hexSig := writeTemp(t, dir, "sig.hex", sigHex+"\n")
	c.mustRun(t, exitOK, "verify", "-pub", pub, "-in", msg, "-sig", hexSig)

	// keygen never overwrites.
	c.mustRun(t, exitFailure, "keygen", "-out", key)
}

func TestVerifyMalformedSignature(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key.pem")
	pub := filepath.Join(dir, "pub.pem")
	msg := writeTemp(t, dir, "msg.txt", "hello, world")

	c := newTestCLI(nil)
	c.mustRun(t, exitOK, "keygen", "-out", key, "-pub", pub)

	garbage := writeTemp(t, dir, "garbage.hex", "3001ff")
	c.mustRun(t, exitUsage, "verify", "-pub", pub, "-in", msg, "-sig", garbage)

	notHex := writeTemp(t, dir, "nothex.txt", "zz")
	c.mustRun(t, exitUsage, "verify", "-pub", pub, "-in", msg, "-sig", notHex)
}

func TestEncryptedKey(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key.pem")
	msg := writeTemp(t, dir, "msg.txt", "payload")

	c := newTestCLI(map[string]string{passphraseEnv: "correct horse"})
	c.mustRun(t, exitOK, "keygen", "-out", key, "-encrypt")

	data, err := os.ReadFile(key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("ENCRYPTED PRIVATE KEY")) {
		t.Fatalf("key file is not encrypted:\n%s", data)
	}

	c.mustRun(t, exitOK, "sign", "-key", key, "-in", msg)

	wrong := newTestCLI(map[string]string{passphraseEnv: "wrong"})
	wrong.mustRun(t, exitFailure, "sign", "-key", key, "-in", msg)

	none := newTestCLI(nil)
	none.mustRun(t, exitFailure, "sign", "-key", key, "-in", msg)

	prompted := newTestCLI(nil)
	prompted.promptPassphrase = func(string) ([]byte, error) { return []byte("correct horse"), nil }
	prompted.mustRun(t, exitOK, "sign", "-key", key, "-in", msg)

	piped := newTestCLI(nil)
	piped.stdin = bufio.NewReader(strings.NewReader("correct horse\n"))
	piped.mustRun(t, exitOK, "sign", "-key", key, "-in", msg)
}

func TestEncryptedKeyPassphraseAndMessageOnStdin(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key.pem")
	pub := filepath.Join(dir, "pub.pem")

	c := newTestCLI(map[string]string{passphraseEnv: "pw"})
	c.mustRun(t, exitOK, "keygen", "-out", key, "-pub", pub, "-encrypt")

	signer := newTestCLI(nil)
	signer.stdin = bufio.NewReader(strings.NewReader("pw\nthe message"))
	sigFile := writeTemp(t, dir, "sig.hex", signer.mustRun(t, exitOK, "sign", "-key", key, "-in", "-"))

	msg := writeTemp(t, dir, "msg.txt", "the message")
	empty := writeTemp(t, dir, "empty.txt", "")
	c.mustRun(t, exitOK, "verify", "-pub", pub, "-in", msg, "-sig", sigFile)
	c.mustRun(t, exitFailure, "verify", "-pub", pub, "-in", empty, "-sig", sigFile)
}

func TestPubkeyFormats(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key.pem")

	c := newTestCLI(nil)
	c.mustRun(t, exitOK, "keygen", "-out", key)

	if out := c.mustRun(t, exitOK, "pubkey", "-key", key); !strings.Contains(out, "BEGIN PUBLIC KEY") {
		t.Errorf("spki output = %q", out)
	}

	out := strings.TrimSpace(c.mustRun(t, exitOK, "pubkey", "-key", key, "-format", "uncompressed"))
	if len(out) != 130 || !strings.HasPrefix(out, "04") {
		t.Errorf("uncompressed output = %q", out)
	}

	c.mustRun(t, exitUsage, "pubkey", "-key", key, "-format", "der")
}

func TestSignFromStdin(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key.pem")
	pub := filepath.Join(dir, "pub.pem")

	c := newTestCLI(nil)
	c.mustRun(t, exitOK, "keygen", "-out", key, "-pub", pub)

	c.stdin = bufio.NewReader(strings.NewReader("streamed"))
	sigHex := c.mustRun(t, exitOK, "sign", "-key", key, "-in", "-")
	sigFile := writeTemp(t, dir, "sig.hex", sigHex)

	c.stdin = bufio.NewReader(strings.NewReader("streamed"))
	c.mustRun(t, exitOK, "verify", "-pub", pub, "-in", "-", "-sig", sigFile)
}

func TestUsage(t *testing.T) {
	c := newTestCLI(nil)
	c.mustRun(t, exitUsage)
	c.mustRun(t, exitUsage, "frobnicate")
	c.mustRun(t, exitUsage, "sign")
	c.mustRun(t, exitUsage, "verify", "-pub", "x")
	c.mustRun(t, exitUsage, "keygen", "-bogus")
	c.mustRun(t, exitOK, "help")
}

func TestReadLine(t *testing.T) {
	got, err := readLine(bufio.NewReader(strings.NewReader("secret\r\nignored")))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "secret" {
		t.Errorf("readLine = %q", got)
	}

	got, err = readLine(bufio.NewReader(strings.NewReader("no newline")))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "no newline" {
		t.Errorf("readLine = %q", got)
	}
}
