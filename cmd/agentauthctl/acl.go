package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/didauth/agentauth/acl"
	"github.com/didauth/agentauth/acl/pgstore"
)

var aclDSN string

var aclCmd = &cobra.Command{
	Use:   "acl",
	Short: "Administer the ACL: approve, reject, ban, or list registered agents",
	Long: `Administer the PostgreSQL-backed ACL store directly. Requires
--dsn pointing at the same database the server is configured with
(store.postgres.dsn); the in-memory store has no meaning outside a
running server process and is not reachable from this CLI.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if aclDSN == "" {
			return fmt.Errorf("acl: --dsn is required")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aclCmd)
	aclCmd.PersistentFlags().StringVar(&aclDSN, "dsn", "", "PostgreSQL DSN for the ACL store (required)")

	aclCmd.AddCommand(aclApproveCmd, aclRejectCmd, aclBanCmd, aclListCmd, aclShowCmd)
}

func openACL(ctx context.Context) (*pgstore.Store, func(), error) {
	pool, err := pgxpool.New(ctx, aclDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("acl: connect: %w", err)
	}
	return pgstore.New(pool), func() { pool.Close() }, nil
}

func setStatus(did string, status acl.Status, reason string) error {
	ctx := context.Background()
	store, closeFn, err := openACL(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	entry, err := store.Get(ctx, did)
	now := time.Now()
	if err != nil {
		if err != acl.ErrNotFound {
			return fmt.Errorf("acl: lookup %s: %w", did, err)
		}
		entry = &acl.Entry{DID: did, RegisteredAt: now}
	}
	entry.Status = status
	entry.UpdatedAt = now
	if reason != "" {
		entry.Reason = reason
	}

	if err := store.Set(ctx, entry); err != nil {
		return fmt.Errorf("acl: update %s: %w", did, err)
	}
	fmt.Printf("%s -> %s\n", did, status)
	return nil
}

var aclApproveReason string

var aclApproveCmd = &cobra.Command{
	Use:   "approve <did>",
	Short: "Mark a DID as approved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args[0], acl.StatusApproved, aclApproveReason)
	},
}

var aclRejectReason string

var aclRejectCmd = &cobra.Command{
	Use:   "reject <did>",
	Short: "Mark a DID as rejected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args[0], acl.StatusRejected, aclRejectReason)
	},
}

var aclBanReason string

var aclBanCmd = &cobra.Command{
	Use:   "ban <did>",
	Short: "Ban a DID, revoking all future challenge issuance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setStatus(args[0], acl.StatusBanned, aclBanReason)
	},
}

func init() {
	aclApproveCmd.Flags().StringVar(&aclApproveReason, "reason", "", "optional note")
	aclRejectCmd.Flags().StringVar(&aclRejectReason, "reason", "", "optional note")
	aclBanCmd.Flags().StringVar(&aclBanReason, "reason", "", "optional note")
}

var aclListStatus string

var aclListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ACL entries, optionally filtered by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, closeFn, err := openACL(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := store.List(ctx, acl.Status(aclListStatus))
		if err != nil {
			return fmt.Errorf("acl: list: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	aclListCmd.Flags().StringVar(&aclListStatus, "status", "", "filter by status (pending_approval, approved, rejected, banned)")
}

var aclShowCmd = &cobra.Command{
	Use:   "show <did>",
	Short: "Show the ACL entry and sequence state for one DID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, closeFn, err := openACL(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		entry, err := store.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("acl: %s: %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}
