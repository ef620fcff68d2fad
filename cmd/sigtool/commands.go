package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/glinharesb/ecsign/internal/crypto"
	"github.com/glinharesb/ecsign/internal/keyfile"
)

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// demo runs the whole lifecycle in memory: generate, export and re-import
// the key, sign, then verify the message and a tampered copy of it.
func (c *cli) demo(args []string) int {
	fs := c.flags("demo")
	message := fs.String("message", "hello, world", "message to sign")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	generated, err := crypto.Generate(crypto.ECDSAP256SHA256, c.rand)
	if err != nil {
		return c.fail("generate: %v", err)
	}
	pkcs8, err := generated.ExportPrivateKey()
	if err != nil {
		return c.fail("export: %v", err)
	}
	kp, err := crypto.ImportPrivateKey(pkcs8, crypto.ECDSAP256SHA256)
	clear(pkcs8)
	if err != nil {
		return c.fail("import: %v", err)
	}
	generated.Destroy()
	defer kp.Destroy()

	sig, err := crypto.Sign(kp, []byte(*message), c.rand)
	if err != nil {
		return c.fail("sign: %v", err)
	}
	fmt.Fprintf(c.stdout, "Signature in hex: %s\n", sig.Hex())

	// Verify the way a remote party would: from the raw public point only.
	raw, err := kp.Public().Bytes(crypto.FormatUncompressed)
	if err != nil {
		return c.fail("public key: %v", err)
	}
	pub, err := crypto.ParsePublicKey(raw, crypto.ECDSAP256SHA256)
	if err != nil {
		return c.fail("public key: %v", err)
	}

	good, err := crypto.Verify(pub, []byte(*message), sig)
	if err != nil {
		return c.fail("verify: %v", err)
	}
	fmt.Fprintf(c.stdout, "Verify %q: %s\n", *message, good)

	tampered := *message + "!"
	bad, err := crypto.Verify(pub, []byte(tampered), sig)
	if err != nil {
		return c.fail("verify: %v", err)
	}
	fmt.Fprintf(c.stdout, "Verify %q: %s\n", tampered, bad)

	if good != crypto.Valid || bad != crypto.Invalid {
		return c.fail("unexpected verification outcome")
	}
	return exitOK
}

func (c *cli) keygen(args []string) int {
	fs := c.flags("keygen")
	out := fs.String("out", "", "private key file to create")
	pubOut := fs.String("pub", "", "public key file to create")
	encrypt := fs.Bool("encrypt", false, "encrypt the private key with a passphrase")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *out == "" {
		fmt.Fprintln(c.stderr, "sigtool keygen: -out is required")
		return exitUsage
	}

	kp, err := crypto.Generate(crypto.ECDSAP256SHA256, c.rand)
	if err != nil {
		return c.fail("generate: %v", err)
	}
	defer kp.Destroy()

	var pass []byte
	if *encrypt {
		if pass, err = c.passphrase("Enter passphrase: "); err != nil {
			return c.fail("%v", err)
		}
		if len(pass) == 0 {
			return c.fail("empty passphrase")
		}
		defer clear(pass)
	}

	data, err := keyfile.EncodePrivateKey(kp, pass)
	if err != nil {
		return c.fail("encode private key: %v", err)
	}
	if err := keyfile.WriteFile(*out, data); err != nil {
		return c.fail("%v", err)
	}

	if *pubOut != "" {
		data, err := keyfile.EncodePublicKey(kp.Public())
		if err != nil {
			return c.fail("encode public key: %v", err)
		}
		if err := keyfile.WriteFile(*pubOut, data); err != nil {
			return c.fail("%v", err)
		}
	}

	fmt.Fprintf(c.stdout, "%s %s\n", kp.Algorithm(), kp.Public().Fingerprint())
	return exitOK
}

func (c *cli) pubkey(args []string) int {
	fs := c.flags("pubkey")
	keyPath := fs.String("key", "", "private key file")
	format := fs.String("format", "spki", "output format: spki or uncompressed")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *keyPath == "" {
		fmt.Fprintln(c.stderr, "sigtool pubkey: -key is required")
		return exitUsage
	}

	kp, err := c.loadPrivateKey(*keyPath)
	if err != nil {
		return c.fail("%v", err)
	}
	defer kp.Destroy()

	switch *format {
	case crypto.FormatSPKI.String():
		data, err := keyfile.EncodePublicKey(kp.Public())
		if err != nil {
			return c.fail("encode public key: %v", err)
		}
		c.stdout.Write(data)
	case crypto.FormatUncompressed.String():
		raw, err := kp.Public().Bytes(crypto.FormatUncompressed)
		if err != nil {
			return c.fail("encode public key: %v", err)
		}
		fmt.Fprintf(c.stdout, "%x\n", raw)
	default:
		fmt.Fprintf(c.stderr, "sigtool pubkey: unknown format %q\n", *format)
		return exitUsage
	}
	return exitOK
}

func (c *cli) sign(args []string) int {
	fs := c.flags("sign")
	keyPath := fs.String("key", "", "private key file")
	in := fs.String("in", "", "file to sign, - for stdin")
	out := fs.String("out", "", "signature file to create")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *keyPath == "" || *in == "" {
		fmt.Fprintln(c.stderr, "sigtool sign: -key and -in are required")
		return exitUsage
	}

	kp, err := c.loadPrivateKey(*keyPath)
	if err != nil {
		return c.fail("%v", err)
	}
	defer kp.Destroy()

	message, err := c.readInput(*in)
	if err != nil {
		return c.fail("%v", err)
	}

	sig, err := crypto.Sign(kp, message, c.rand)
	if err != nil {
		return c.fail("%v", err)
	}

	if *out != "" {
		data, err := keyfile.EncodeSignature(sig)
		if err != nil {
			return c.fail("%v", err)
		}
		if err := keyfile.WriteFile(*out, data); err != nil {
			return c.fail("%v", err)
		}
	}
	fmt.Fprintln(c.stdout, sig.Hex())
	return exitOK
}

func (c *cli) verify(args []string) int {
	fs := c.flags("verify")
	pubPath := fs.String("pub", "", "public key file")
	in := fs.String("in", "", "signed file, - for stdin")
	sigPath := fs.String("sig", "", "signature file (PEM or hex)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *pubPath == "" || *in == "" || *sigPath == "" {
		fmt.Fprintln(c.stderr, "sigtool verify: -pub, -in and -sig are required")
		return exitUsage
	}

	pubData, err := os.ReadFile(*pubPath)
	if err != nil {
		return c.fail("%v", err)
	}
	pub, err := keyfile.DecodePublicKey(pubData)
	if err != nil {
		fmt.Fprintf(c.stderr, "sigtool: %v\n", err)
		return exitUsage
	}

	sigData, err := os.ReadFile(*sigPath)
	if err != nil {
		return c.fail("%v", err)
	}
	sig, err := decodeSignature(sigData, pub.Algorithm())
	if err != nil {
		fmt.Fprintf(c.stderr, "sigtool: %v\n", err)
		return exitUsage
	}

	message, err := c.readInput(*in)
	if err != nil {
		return c.fail("%v", err)
	}

	verdict, err := crypto.Verify(pub, message, sig)
	if err != nil {
		fmt.Fprintf(c.stderr, "sigtool: %v\n", err)
		return exitUsage
	}
	fmt.Fprintln(c.stdout, verdict)
	if verdict != crypto.Valid {
		return exitFailure
	}
	return exitOK
}

// loadPrivateKey reads a key file, asking for a passphrase only when the
// file turns out to be encrypted.
func (c *cli) loadPrivateKey(path string) (*crypto.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	kp, err := keyfile.DecodePrivateKey(data, nil, crypto.ECDSAP256SHA256)
	if !errors.Is(err, keyfile.ErrPassphraseRequired) {
		return kp, err
	}

	pass, err := c.passphrase(fmt.Sprintf("Passphrase for %s: ", path))
	if err != nil {
		return nil, err
	}
	defer clear(pass)
	return keyfile.DecodePrivateKey(data, pass, crypto.ECDSAP256SHA256)
}

func (c *cli) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(path)
}

// decodeSignature accepts a PEM block written by sign -out or the hex line
// sign prints.
func decodeSignature(data []byte, alg crypto.Algorithm) (crypto.Signature, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return keyfile.DecodeSignature(data)
	}
	return crypto.ParseSignatureHex(strings.TrimSpace(string(data)), alg)
}
