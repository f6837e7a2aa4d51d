package provider

import "context"

// Name identifies a payment provider.
type Name string

const (
	Telebirr Name = "telebirr"
	Chapa    Name = "chapa"
)

// Priority is the fixed selection order: mobile money first, gateway second.
var Priority = []Name{Telebirr, Chapa}

type TransferStatus string

const (
	StatusPending TransferStatus = "pending"
	StatusSuccess TransferStatus = "success"
	StatusFailed  TransferStatus = "failed"
)

type TransferRequest struct {
	Recipient   string
	Amount      float64
	Currency    string
	Reference   string
	Description string
}

// TransferResult is the normalized outcome of a transfer attempt. Adapters
// convert network and timeout failures into a failed result instead of
// returning an error, so callers always get a definite answer.
type TransferResult struct {
	Success      bool
	ProviderTxID string
	Status       TransferStatus
	Message      string
}

type RecipientValidation struct {
	Valid      bool
	Normalized string
	Message    string
}

type AccountVerification struct {
	Verified    bool
	DisplayName string
}

// TransferClient is the capability contract shared by all payment providers.
type TransferClient interface {
	Name() Name

	// Transfer sends money to the recipient. The reference is the caller's
	// idempotency handle; resubmitting the same reference must not double-pay.
	Transfer(ctx context.Context, req TransferRequest) TransferResult

	// ValidateRecipient checks and normalizes a recipient identifier without
	// touching the network when possible.
	ValidateRecipient(identifier string) RecipientValidation

	// VerifyAccount resolves the account with the provider.
	VerifyAccount(ctx context.Context, accountID string) (AccountVerification, error)

	// QueryTransfer fetches the provider-side state of an earlier transfer.
	QueryTransfer(ctx context.Context, reference string) TransferResult
}

// Registry gives lookup by provider name.
type Registry map[Name]TransferClient

func NewRegistry(clients ...TransferClient) Registry {
	reg := make(Registry, len(clients))
	for _, c := range clients {
		reg[c.Name()] = c
	}
	return reg
}

func (r Registry) Get(name Name) (TransferClient, bool) {
	c, ok := r[name]
	return c, ok
}
