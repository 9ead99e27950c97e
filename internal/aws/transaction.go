package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// MaxTransactItems is the DynamoDB limit on items per TransactWriteItems call.
	MaxTransactItems = 100

	defaultTxTimeout = 10 * time.Second

	// Cancellation reason codes reported by DynamoDB.
	ReasonNone                = "None"
	ReasonConditionalCheck    = "ConditionalCheckFailed"
	ReasonTransactionConflict = "TransactionConflict"
)

// TxItem is a transact write item tagged with the component that produced it,
// so a cancellation reason can be mapped back to a domain error.
type TxItem struct {
	Kind string
	Key  string
	Item types.TransactWriteItem
}

// Tx accumulates write items that commit or fail as a single unit.
type Tx struct {
	items []TxItem
}

// NewTx returns an empty transaction.
func NewTx() *Tx {
	return &Tx{}
}

// Add appends item to the transaction. Items keep insertion order.
func (t *Tx) Add(item TxItem) {
	t.items = append(t.items, item)
}

// TxFailure describes one item that caused the transaction to be cancelled.
type TxFailure struct {
	Index   int
	Kind    string
	Key     string
	Code    string
	Message string
	// Item holds the pre-image when the item asked for ALL_OLD on condition failure.
	Item map[string]types.AttributeValue
}

// TxCanceledError is returned when DynamoDB cancels the transaction. Failures
// are in item order.
type TxCanceledError struct {
	Failures []TxFailure
	Err      error
}

func (e *TxCanceledError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s(%s)=%s", f.Kind, f.Key, f.Code))
	}
	if len(parts) == 0 {
		return "transaction canceled"
	}
	return "transaction canceled: " + strings.Join(parts, ", ")
}

func (e *TxCanceledError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FirstOfKind returns the first failure raised by an item of the given kind.
func (e *TxCanceledError) FirstOfKind(kind string) (TxFailure, bool) {
	if e == nil {
		return TxFailure{}, false
	}
	for _, f := range e.Failures {
		if f.Kind == kind {
			return f, true
		}
	}
	return TxFailure{}, false
}

// HasCode reports whether any failure carries the given reason code.
func (e *TxCanceledError) HasCode(code string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Failures {
		if f.Code == code {
			return true
		}
	}
	return false
}

// TxOption customises Commit.
type TxOption func(*txConfig)

type txConfig struct {
	timeout time.Duration
}

// WithTxTimeout bounds the commit call. Non-positive values keep the default.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// Commit submits all queued items in one TransactWriteItems call.
func (t *Tx) Commit(ctx context.Context, client DynamoDBAPI, opts ...TxOption) error {
	if client == nil {
		return errors.New("transaction: dynamodb client is nil")
	}
	if len(t.items) == 0 {
		return errors.New("transaction: no items")
	}
	if len(t.items) > MaxTransactItems {
		return fmt.Errorf("transaction: %d items exceeds limit of %d", len(t.items), MaxTransactItems)
	}

	cfg := txConfig{timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txCtx := ctx
	if cfg.timeout > 0 {
		deadline, hasDeadline := ctx.Deadline()
		if !hasDeadline || time.Until(deadline) > cfg.timeout {
			var cancel context.CancelFunc
			txCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}
	}

	input := &dyn.TransactWriteItemsInput{
		TransactItems: make([]types.TransactWriteItem, len(t.items)),
	}
	for i, it := range t.items {
		input.TransactItems[i] = it.Item
	}

	_, err := client.TransactWriteItems(txCtx, input)
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return &TxCanceledError{Failures: t.failures(tce.CancellationReasons), Err: err}
	}
	return fmt.Errorf("transact write: %w", err)
}

func (t *Tx) failures(reasons []types.CancellationReason) []TxFailure {
	var out []TxFailure
	for i, r := range reasons {
		code := derefString(r.Code)
		if code == "" || code == ReasonNone {
			continue
		}
		f := TxFailure{
			Index:   i,
			Code:    code,
			Message: derefString(r.Message),
			Item:    r.Item,
		}
		if i < len(t.items) {
			f.Kind = t.items[i].Kind
			f.Key = t.items[i].Key
		}
		out = append(out, f)
	}
	return out
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
