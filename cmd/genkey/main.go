// Command genkey generates an Ed25519 keypair for the stateless token
// verifier and optionally mints a sample credential token, which is
// handy when poking the relay with wscat during development.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Ruthvikraj007/backend-buddies/internal/auth"
	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
)

func main() {
	userID := flag.String("user", "", "mint a sample token for this user id")
	username := flag.String("name", "", "display name for the sample token")
	ttl := flag.Duration("ttl", time.Hour, "sample token lifetime")
	flag.Parse()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("AUTH_PUBLIC_KEY=%s\n", base64.StdEncoding.EncodeToString(pub))
	fmt.Printf("private key (keep with the login service):\n%s\n", base64.StdEncoding.EncodeToString(priv))

	if *userID != "" {
		token, err := auth.MintToken(priv, presence.Identity{UserID: *userID, Username: *username}, *ttl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sample token for %s:\n%s\n", *userID, token)
	}
}
