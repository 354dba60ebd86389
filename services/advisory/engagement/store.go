// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engagement implements the advisor engagement workflow: the
// durable request store and the coordinator that drives the
// request/approve/decline/cancel state machine.
//
// # Single-Assignment Invariant
//
// For every client at most one Assignment exists at any time, even under
// concurrent approvals from distinct advisors. The store enforces this by
// performing "check no assignment exists" and "create assignment" inside
// one BadgerDB transaction. Badger's serializable snapshot isolation turns
// a lost race into badger.ErrConflict at commit time; the store retries the
// transaction, the re-evaluation finds the winner's assignment, and the
// loser gets ALREADY_ASSIGNED. A naive read-then-write across two
// transactions would let both approvals succeed.
package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/finhaven/finhaven/services/advisory/datatypes"
	storage "github.com/finhaven/finhaven/services/advisory/storage/badger"
)

// Key layout. Values under index keys are the request ID; the request
// record itself lives under keyRequest. Principal IDs must not contain '/'.
//
//	eng/req/<id>                      request record (JSON)
//	eng/pair/<client>/<advisor>       pending marker for duplicate detection
//	eng/padv/<advisor>/<ts>/<id>      pending index, requestedAt-ordered
//	eng/pcli/<client>/<id>            pending index by client
//	eng/aadv/<advisor>/<id>           all requests by advisor (stats)
//	eng/assign/<client>               assignment record (JSON)
const (
	prefixRequest        = "eng/req/"
	prefixPair           = "eng/pair/"
	prefixPendingAdvisor = "eng/padv/"
	prefixPendingClient  = "eng/pcli/"
	prefixAllAdvisor     = "eng/aadv/"
	prefixAssignment     = "eng/assign/"
)

// maxTxnRetries bounds re-execution after badger.ErrConflict. Conflicts
// only arise from racing writers on the same client, so one retry is
// normally enough for the re-evaluation to return a typed error.
const maxTxnRetries = 3

func keyRequest(id string) []byte {
	return []byte(prefixRequest + id)
}

func keyPair(clientID, advisorID string) []byte {
	return []byte(prefixPair + clientID + "/" + advisorID)
}

func keyPendingAdvisor(advisorID string, requestedAt int64, id string) []byte {
	// Zero-padded millis keep badger's key order equal to request order.
	return []byte(fmt.Sprintf("%s%s/%016d/%s", prefixPendingAdvisor, advisorID, requestedAt, id))
}

func keyPendingClient(clientID, id string) []byte {
	return []byte(prefixPendingClient + clientID + "/" + id)
}

func keyAllAdvisor(advisorID, id string) []byte {
	return []byte(prefixAllAdvisor + advisorID + "/" + id)
}

func keyAssignment(clientID string) []byte {
	return []byte(prefixAssignment + clientID)
}

// Store is the durable record of engagement requests and advisor
// assignments, backed by BadgerDB. Safe for concurrent use.
type Store struct {
	db *storage.DB
}

// NewStore creates a store on top of an opened database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// update runs fn in a read-write transaction, retrying on commit conflicts
// so that racing writers re-evaluate against the winner's state.
func (s *Store) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.db.WithTxn(ctx, fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return err
}

func validID(id string) bool {
	return id != "" && !strings.ContainsRune(id, '/')
}

// CreateRequest records a new REQUESTED engagement request from clientID to
// advisorID.
//
// Fails with ALREADY_ASSIGNED if the client already has an assignment and
// with DUPLICATE_PENDING if a pending request for the same pair exists.
// Both checks and the insert happen in one transaction.
func (s *Store) CreateRequest(ctx context.Context, clientID, advisorID, message string) (*datatypes.EngagementRequest, error) {
	if !validID(clientID) || !validID(advisorID) {
		return nil, fmt.Errorf("invalid principal id")
	}

	req := &datatypes.EngagementRequest{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		AdvisorID:   advisorID,
		Message:     message,
		State:       datatypes.StateRequested,
		RequestedAt: datatypes.NowMillis(),
	}

	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		if err := keyAbsent(txn, keyAssignment(clientID)); err != nil {
			if errors.Is(err, errKeyExists) {
				return ErrAlreadyAssigned
			}
			return err
		}
		if err := keyAbsent(txn, keyPair(clientID, advisorID)); err != nil {
			if errors.Is(err, errKeyExists) {
				return ErrDuplicatePending
			}
			return err
		}

		raw, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		id := []byte(req.ID)
		if err := txn.Set(keyRequest(req.ID), raw); err != nil {
			return err
		}
		if err := txn.Set(keyPair(clientID, advisorID), id); err != nil {
			return err
		}
		if err := txn.Set(keyPendingAdvisor(advisorID, req.RequestedAt, req.ID), id); err != nil {
			return err
		}
		if err := txn.Set(keyPendingClient(clientID, req.ID), id); err != nil {
			return err
		}
		return txn.Set(keyAllAdvisor(advisorID, req.ID), id)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Resolve moves a REQUESTED request to the given terminal outcome.
//
// Fails with NOT_FOUND if no such request exists and ALREADY_RESOLVED if it
// already left REQUESTED. An APPROVED outcome additionally creates the
// client's Assignment in the same transaction; if an assignment already
// exists the call fails with ALREADY_ASSIGNED and the request stays
// REQUESTED, leaving the client free to cancel it.
func (s *Store) Resolve(ctx context.Context, requestID string, outcome datatypes.RequestState) (*datatypes.EngagementRequest, error) {
	if !outcome.Terminal() {
		return nil, fmt.Errorf("outcome %q is not terminal", outcome)
	}

	var resolved *datatypes.EngagementRequest
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		resolved = nil

		req, err := getRequest(txn, requestID)
		if err != nil {
			return err
		}
		if req.State != datatypes.StateRequested {
			return ErrAlreadyResolved
		}

		if outcome == datatypes.StateApproved {
			if err := keyAbsent(txn, keyAssignment(req.ClientID)); err != nil {
				if errors.Is(err, errKeyExists) {
					return ErrAlreadyAssigned
				}
				return err
			}
			assignment := datatypes.Assignment{
				ClientID:  req.ClientID,
				AdvisorID: req.AdvisorID,
				Since:     datatypes.NowMillis(),
			}
			raw, err := json.Marshal(assignment)
			if err != nil {
				return fmt.Errorf("marshal assignment: %w", err)
			}
			if err := txn.Set(keyAssignment(req.ClientID), raw); err != nil {
				return err
			}
		}

		req.State = outcome
		req.ResolvedAt = datatypes.NowMillis()

		raw, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		if err := txn.Set(keyRequest(req.ID), raw); err != nil {
			return err
		}

		// The request is no longer pending; drop it from the pending
		// indexes. The all-requests index stays for stats.
		if err := txn.Delete(keyPair(req.ClientID, req.AdvisorID)); err != nil {
			return err
		}
		if err := txn.Delete(keyPendingAdvisor(req.AdvisorID, req.RequestedAt, req.ID)); err != nil {
			return err
		}
		if err := txn.Delete(keyPendingClient(req.ClientID, req.ID)); err != nil {
			return err
		}

		resolved = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// GetRequest loads a single request by ID.
func (s *Store) GetRequest(ctx context.Context, requestID string) (*datatypes.EngagementRequest, error) {
	var req *datatypes.EngagementRequest
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		var err error
		req, err = getRequest(txn, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetAssignment returns the client's active assignment, or nil when the
// client has no advisor.
func (s *Store) GetAssignment(ctx context.Context, clientID string) (*datatypes.Assignment, error) {
	var assignment *datatypes.Assignment
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyAssignment(clientID))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		assignment = &datatypes.Assignment{}
		return json.Unmarshal(raw, assignment)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// ListPendingForAdvisor returns the advisor's REQUESTED requests ordered by
// requestedAt ascending: first come, first seen.
func (s *Store) ListPendingForAdvisor(ctx context.Context, advisorID string) ([]datatypes.EngagementRequest, error) {
	return s.listByIndex(ctx, prefixPendingAdvisor+advisorID+"/")
}

// ListPendingForClient returns the client's REQUESTED requests.
func (s *Store) ListPendingForClient(ctx context.Context, clientID string) ([]datatypes.EngagementRequest, error) {
	return s.listByIndex(ctx, prefixPendingClient+clientID+"/")
}

// Stats counts the advisor's requests by state across their whole history.
func (s *Store) Stats(ctx context.Context, advisorID string) (*datatypes.AdvisorStats, error) {
	stats := &datatypes.AdvisorStats{}
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		prefix := []byte(prefixAllAdvisor + advisorID + "/")
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			req, err := getRequest(txn, string(id))
			if err != nil {
				return err
			}
			switch req.State {
			case datatypes.StateRequested:
				stats.Pending++
			case datatypes.StateApproved:
				stats.Approved++
			case datatypes.StateDeclined:
				stats.Declined++
			case datatypes.StateCancelled:
				stats.Cancelled++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// listByIndex walks an index prefix in key order and loads each referenced
// request.
func (s *Store) listByIndex(ctx context.Context, prefix string) ([]datatypes.EngagementRequest, error) {
	var requests []datatypes.EngagementRequest
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			req, err := getRequest(txn, string(id))
			if err != nil {
				return err
			}
			requests = append(requests, *req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func getRequest(txn *badgerdb.Txn, requestID string) (*datatypes.EngagementRequest, error) {
	item, err := txn.Get(keyRequest(requestID))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	req := &datatypes.EngagementRequest{}
	if err := json.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("unmarshal request %s: %w", requestID, err)
	}
	return req, nil
}

// errKeyExists is an internal signal from keyAbsent; callers translate it
// to the appropriate typed error.
var errKeyExists = errors.New("key exists")

// keyAbsent returns nil when key is absent and errKeyExists when present.
// Reading the key inside the transaction is what registers it for badger's
// conflict detection.
func keyAbsent(txn *badgerdb.Txn, key []byte) error {
	_, err := txn.Get(key)
	if err == nil {
		return errKeyExists
	}
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil
	}
	return err
}
