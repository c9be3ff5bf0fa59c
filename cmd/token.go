package cmd

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mixtura/petube/internal/auth"
)

var (
	tokenKeyFile string
	tokenSubject string
	tokenName    string
	tokenEmail   string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development bearer token from an RSA private key",
	Long:  `Local development helper. Real tokens come from the identity provider.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenKeyFile, "key", "dev_private.pem", "PEM RSA private key file")
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "dev-user", "subject id")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name claim")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(tokenKeyFile)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return fmt.Errorf("no PEM block in %s", tokenKeyFile)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return fmt.Errorf("parse key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return fmt.Errorf("not an RSA key: %s", tokenKeyFile)
		}
		key = rsaKey
	}
	tok, err := auth.MintDevToken(key, tokenSubject, tokenName, tokenEmail, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
