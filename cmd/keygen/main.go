package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"framewire/internal/stream/cipher"
)

func main() {
	method := flag.String("method", "aes-cbc", "Cipher method: aes-cbc or xchacha20")
	flag.Parse()

	name := strings.ToLower(strings.TrimSpace(*method))
	switch cipher.Method(name) {
	case cipher.MethodAESCBC, cipher.MethodXChaCha20, "chacha20", "xchacha20":
	default:
		fmt.Fprintf(os.Stderr, "Unsupported cipher method: %s (use aes-cbc or xchacha20)\n", *method)
		os.Exit(1)
	}

	key, err := cipher.GenerateKeyBase64()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== framewire key generator ===")
	fmt.Println("Fresh base64 key material for the stream cipher.")
	fmt.Println("Both peers must be configured with the same values.")
	fmt.Println()
	fmt.Println("stream:")
	fmt.Printf("  cipher: %s\n", name)
	fmt.Printf("  key: %q\n", key)

	if cipher.Method(name) == cipher.MethodAESCBC {
		iv, err := cipher.GenerateIVBase64()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating IV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  iv: %q\n", iv)
	}
}
