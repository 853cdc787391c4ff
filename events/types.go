package events

import (
	"time"

	"github.com/mezonai/vault/types"
)

// EventType is an enum-like string type for vault events
type EventType string

const (
	EventVaultInitialized EventType = "VaultInitialized"
	EventFundsDeposited   EventType = "FundsDeposited"
	EventFundsWithdrawn   EventType = "FundsWithdrawn"
	EventOperationFailed  EventType = "OperationFailed"
)

// VaultEvent represents anything that happens to a vault record
type VaultEvent interface {
	Type() EventType
	Timestamp() time.Time
	VaultID() types.VaultID
}

type baseEvent struct {
	vaultID   types.VaultID
	timestamp time.Time
}

func (e *baseEvent) Timestamp() time.Time {
	return e.timestamp
}

func (e *baseEvent) VaultID() types.VaultID {
	return e.vaultID
}

// VaultInitialized event when a vault record is created
type VaultInitialized struct {
	baseEvent
	admin types.Principal
	name  string
}

func NewVaultInitialized(vault *types.Vault) *VaultInitialized {
	return &VaultInitialized{
		baseEvent: baseEvent{vaultID: vault.ID, timestamp: time.Now()},
		admin:     vault.Admin,
		name:      vault.Name,
	}
}

func (e *VaultInitialized) Type() EventType {
	return EventVaultInitialized
}

func (e *VaultInitialized) Admin() types.Principal {
	return e.admin
}

func (e *VaultInitialized) Name() string {
	return e.name
}

// FundsMoved carries the counterparty, the amount and the resulting balance
type FundsMoved struct {
	baseEvent
	eventType    EventType
	counterparty types.Principal
	amount       uint64
	totalBalance uint64
}

func NewFundsDeposited(vault *types.Vault, depositor types.Principal, amount uint64) *FundsMoved {
	return newFundsMoved(EventFundsDeposited, vault, depositor, amount)
}

func NewFundsWithdrawn(vault *types.Vault, recipient types.Principal, amount uint64) *FundsMoved {
	return newFundsMoved(EventFundsWithdrawn, vault, recipient, amount)
}

func newFundsMoved(eventType EventType, vault *types.Vault, counterparty types.Principal, amount uint64) *FundsMoved {
	return &FundsMoved{
		baseEvent:    baseEvent{vaultID: vault.ID, timestamp: time.Now()},
		eventType:    eventType,
		counterparty: counterparty,
		amount:       amount,
		totalBalance: vault.TotalBalance,
	}
}

func (e *FundsMoved) Type() EventType {
	return e.eventType
}

func (e *FundsMoved) Counterparty() types.Principal {
	return e.counterparty
}

func (e *FundsMoved) Amount() uint64 {
	return e.amount
}

func (e *FundsMoved) TotalBalance() uint64 {
	return e.totalBalance
}

// OperationFailed event when a deposit or withdrawal is rejected
type OperationFailed struct {
	baseEvent
	operation    string
	errorMessage string
}

func NewOperationFailed(vaultID types.VaultID, operation string, err error) *OperationFailed {
	return &OperationFailed{
		baseEvent:    baseEvent{vaultID: vaultID, timestamp: time.Now()},
		operation:    operation,
		errorMessage: err.Error(),
	}
}

func (e *OperationFailed) Type() EventType {
	return EventOperationFailed
}

func (e *OperationFailed) Operation() string {
	return e.operation
}

func (e *OperationFailed) ErrorMessage() string {
	return e.errorMessage
}
