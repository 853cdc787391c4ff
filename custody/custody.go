// Package custody holds the value that vault records account for.
//
// A Custodian owns holdings and moves value between them. The vault ledger
// never touches holdings directly; it mirrors each successful transfer in its
// own counter, staging that counter inside the custodian's atomic unit.
package custody

import (
	"context"

	"github.com/mezonai/vault/db"
	"github.com/mezonai/vault/types"
)

// TransferRequest moves Amount from the From holding to the To holding.
// Authority must be the owner of From.
type TransferRequest struct {
	From      types.Principal
	To        types.Principal
	Authority types.Principal
	Amount    uint64
}

// CommitFunc stages the caller's own writes into the custodian's batch.
// Returning an error aborts the transfer.
type CommitFunc func(batch db.DatabaseBatch) error

// Custodian is the external custody collaborator. Transfer either moves the
// full amount and applies commit, or does neither, and reports failure
// before returning.
type Custodian interface {
	Transfer(ctx context.Context, req TransferRequest, commit CommitFunc) error
}
