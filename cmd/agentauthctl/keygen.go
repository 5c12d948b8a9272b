package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/didauth/agentauth/crypto/edkey"
	"github.com/didauth/agentauth/didresolve"
)

var (
	keygenOutputDir string
	keygenPrefix    string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 agent key pair and its did:key identifier",
	Long: `Generate a fresh Ed25519 key pair, derive its did:key DID, and
print or save the result.

The private key is written as a hex-encoded seed to <prefix>.priv and
the public key to <prefix>.pub when --output-dir is set; otherwise both
are printed to stdout. Protect the private key file: anyone holding it
can sign manifests and challenges as this DID.`,
	Example: `  # Print a new key pair and DID to stdout
  agentauthctl keygen

  # Write key material to ./keys/agent-1.{priv,pub}
  agentauthctl keygen --output-dir ./keys --prefix agent-1`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOutputDir, "output-dir", "o", "", "directory to write key files into (default: print to stdout)")
	keygenCmd.Flags().StringVar(&keygenPrefix, "prefix", "agent", "file name prefix when --output-dir is set")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	kp, err := edkey.Generate()
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}

	did, err := didresolve.EncodeDidKey(kp.Public)
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}

	privHex := hex.EncodeToString(kp.Private.Seed())
	pubHex := hex.EncodeToString(kp.Public)

	if keygenOutputDir == "" {
		fmt.Printf("did: %s\n", did)
		fmt.Printf("public_key: %s\n", pubHex)
		fmt.Printf("private_key: %s\n", privHex)
		return nil
	}

	if err := os.MkdirAll(keygenOutputDir, 0o755); err != nil {
		return fmt.Errorf("keygen: create output dir: %w", err)
	}

	privPath := keygenOutputDir + "/" + keygenPrefix + ".priv"
	pubPath := keygenOutputDir + "/" + keygenPrefix + ".pub"
	if err := os.WriteFile(privPath, []byte(privHex+"\n"), 0o600); err != nil {
		return fmt.Errorf("keygen: write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(pubHex+"\n"), 0o644); err != nil {
		return fmt.Errorf("keygen: write public key: %w", err)
	}

	fmt.Printf("did: %s\n", did)
	fmt.Printf("private key written to %s\n", privPath)
	fmt.Printf("public key written to %s\n", pubPath)
	return nil
}
