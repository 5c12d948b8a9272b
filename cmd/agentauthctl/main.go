// Command agentauthctl is the operator CLI for the agent-auth server:
// key generation, manifest signing, ACL administration, and serving the
// §6 wire protocol. One cobra subcommand per file, grounded on the
// teacher's cmd/sage-did and cmd/sage-crypto layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentauthctl",
	Short: "agentauthctl - DID-based agent authentication server and operator CLI",
	Long: `agentauthctl manages the agent-auth server: generating Ed25519
agent keys, signing and verifying manifests, administering the ACL, and
running the challenge/verify/register HTTP server.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
