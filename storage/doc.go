// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for hooshi.
//
// This package defines the Store interface shared by the two persistence
// backends. The durable primary store lives in storage/badger; the in-memory
// fallback store with snapshot persistence lives in storage/memory. Both
// expose identical read semantics so the facade can route any single call to
// either one.
//
// # Architecture
//
//   - Store: conversations, messages, usage records, settings and counters
//   - ErrNotFound: the one "absent" signal every backend uses
//   - IsBackendFailure: separates backend faults from caller errors
//   - Marshal*/Unmarshal*: the binary record codec used by key-value backends
//
// # Usage
//
//	store, err := badger.Open("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.Open("", true)
//
// # Ids
//
// Stores never allocate ids. Every record arrives with its id already
// assigned by the sequence package, so a write retried against another
// backend keeps the same id.
//
// # Thread Safety
//
// All store implementations must be thread-safe and support concurrent
// access from multiple goroutines.
package storage
