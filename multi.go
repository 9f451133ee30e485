package ensemble

import (
	"bytes"
	"encoding/gob"
	"strconv"
)

// MultiOp is an ordered, atomic batch of primitive operations. The
// engine serializes it into a single commit: the entire batch succeeds
// and applies in order, or no effect is visible. There is no
// concurrency between the ops within a transaction -- they are
// observed by every other client in the given order.
type MultiOp struct {
	ops []TxnOp
}

// NewMultiOp starts an empty transaction builder.
func NewMultiOp() *MultiOp {
	return &MultiOp{}
}

// GobEncode lets a wire transport marshal a MultiOp with gob despite
// its ops field being unexported: encoding/gob only sees exported
// struct fields by default, which would silently drop the batch.
func (m *MultiOp) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m.ops); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode is the GobEncode counterpart.
func (m *MultiOp) GobDecode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(&m.ops)
}

// Check asserts path currently has version, without otherwise
// affecting it. It produces an empty result on success.
func (m *MultiOp) Check(path Path, version DataVersion) *MultiOp {
	m.ops = append(m.ops, TxnOp{Kind: TxnCheck, Path: path, Version: version})
	return m
}

// Create appends a create operation to the batch.
func (m *MultiOp) Create(path Path, data []byte, acl []ACLEntry, mode CreateMode) *MultiOp {
	m.ops = append(m.ops, TxnOp{Kind: TxnCreate, Path: path, Data: data, ACL: acl, Mode: mode})
	return m
}

// Set appends a set operation to the batch.
func (m *MultiOp) Set(path Path, data []byte, version DataVersion) *MultiOp {
	m.ops = append(m.ops, TxnOp{Kind: TxnSet, Path: path, Data: data, Version: version})
	return m
}

// Erase appends an erase operation to the batch.
func (m *MultiOp) Erase(path Path, version DataVersion) *MultiOp {
	m.ops = append(m.ops, TxnOp{Kind: TxnErase, Path: path, Version: version})
	return m
}

// Len reports how many operations are queued.
func (m *MultiOp) Len() int { return len(m.ops) }

// Ops returns the queued operations in submission order. Transport
// implementations read this to encode a multi-op submission; the
// slice must be treated as read-only.
func (m *MultiOp) Ops() []TxnOp { return m.ops }

func (m *MultiOp) validate() error {
	if len(m.ops) == 0 {
		return InvalidArguments("multi-op transaction must contain at least one operation")
	}
	for _, op := range m.ops {
		if err := op.Path.Validate(); err != nil {
			return err
		}
		if op.Kind == TxnCreate {
			if len(op.Data) > MaxDataSize {
				return InvalidArguments("payload exceeds maximum size of 1 MiB")
			}
			if len(op.ACL) == 0 {
				return InvalidACL("acl must not be empty")
			}
			if err := op.Mode.Validate(); err != nil {
				return err
			}
		}
		if op.Kind == TxnSet && len(op.Data) > MaxDataSize {
			return InvalidArguments("payload exceeds maximum size of 1 MiB")
		}
	}
	return nil
}

// Commit submits m as a single atomic transaction. On success, Results
// holds one entry per op in submission order: a CreateResult or
// SetResult value for create/set ops, and an empty EraseResult or
// check marker value for erase/check ops. On failure, the returned error is a *Error with
// Kind == KindTransactionFailed, wrapping the underlying cause and
// carrying the 0-based index of the first failing operation.
func (e *Engine) Commit(m *MultiOp) *Completion[MultiResult] {
	if err := m.validate(); err != nil {
		return resolvedCompletion[MultiResult](err)
	}
	id, ch := e.completions.register()
	if err := e.submit(Op{Tracker: Tracker(id), Multi: m}, "multi"); err != nil {
		e.completions.resolve(id, completionOutcome{err: err})
	}
	return newCompletion[MultiResult](ch)
}

// PerOpStatus is what a transport reports for each operation inside a
// multi-op reply: ok, or a failure kind. Statuses after the first
// failure are runtime-inconsistency placeholders and carry no
// meaningful kind.
type PerOpStatus struct {
	OK   bool
	Kind ErrorKind
}

// DecodeMultiReply is the transport-facing helper that turns a slice
// of per-op statuses into either a MultiResult or a transaction_failed
// error carrying the first failing op's index. Transport
// implementations call this when assembling a ReplyMultiResult or
// ReplyError for a multi-op submission.
func DecodeMultiReply(m *MultiOp, statuses []PerOpStatus) (*MultiResult, *Error) {
	for idx, st := range statuses {
		if !st.OK {
			cause := newError(st.Kind, "operation "+strconv.Itoa(idx)+" failed")
			return nil, TransactionFailed(cause, idx)
		}
	}

	results := make([]any, len(m.ops))
	for i, op := range m.ops {
		switch op.Kind {
		case TxnCheck:
			results[i] = checkResult{}
		case TxnErase:
			results[i] = EraseResult{}
		case TxnCreate:
			results[i] = CreateResult{Name: op.Path}
		case TxnSet:
			results[i] = SetResult{}
		}
	}
	return &MultiResult{Results: results}, nil
}
