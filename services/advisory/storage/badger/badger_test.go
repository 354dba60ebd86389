// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"context"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
)

func TestOpen_RequiresPathForPersistent(t *testing.T) {
	_, err := Open(Config{})
	if err == nil {
		t.Fatal("expected error for persistent database without path")
	}
}

func TestOpenInMemory_RoundTrip(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()

	if !db.InMemory() {
		t.Error("expected InMemory() to be true")
	}

	ctx := context.Background()
	err = db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("write txn failed: %v", err)
	}

	err = db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(val) != "v" {
			t.Errorf("got %q, want %q", val, "v")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read txn failed: %v", err)
	}
}

func TestOpen_PersistentSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	cfg := Config{Path: dir, SyncWrites: true}
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ctx := context.Background()
	if err := db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set([]byte("durable"), []byte("yes"))
	}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	db, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	err = db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte("durable"))
		return err
	})
	if err != nil {
		t.Errorf("key did not survive reopen: %v", err)
	}
}

func TestWithTxn_ContextCancelled(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		t.Error("fn should not run with cancelled context")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
