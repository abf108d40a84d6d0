// Package ledger defines the domain types shared by the tokenization workflow:
// the deployment Kind, the Tracking Key, ledger Status and Entry, and the
// reconciliation Result written back to the Token Ledger.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ledger; ledger imports nothing internal.
//
// Key invariants:
//   - At most one Entry per Tracking Key (enforced by the store's unique index)
//   - StatusSuccess always carries a token id
//   - StatusFailed always carries an error
//   - StatusQueued carries neither
package ledger
