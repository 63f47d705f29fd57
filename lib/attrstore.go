/*
Copyright 2026 the ps-printer-app authors. All rights reserved.

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file.
*/

package lib

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

// AttributeStore persists per-queue string attributes across restarts:
// the installable-options blob, vendor option defaults, ready media.
// Values round-trip verbatim; the store never reinterprets them.
//
// One JSON file per queue under dir, written whole on every Set, the
// same way the connector config and state files are handled.
type AttributeStore struct {
	dir   string
	mutex sync.Mutex
}

func NewAttributeStore(dir string) (*AttributeStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &AttributeStore{dir: dir}, nil
}

func (s *AttributeStore) filename(queue string) string {
	return filepath.Join(s.dir, queue+".attrs.json")
}

func (s *AttributeStore) load(queue string) (map[string]string, error) {
	b, err := ioutil.ReadFile(s.filename(queue))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *AttributeStore) Get(queue, key string) (string, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, err := s.load(queue)
	if err != nil {
		return "", false, err
	}
	v, exists := m[key]
	return v, exists, nil
}

func (s *AttributeStore) Set(queue, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, err := s.load(queue)
	if err != nil {
		return err
	}
	m[key] = value

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(s.filename(queue), b, 0600)
}

func (s *AttributeStore) Delete(queue, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, err := s.load(queue)
	if err != nil {
		return err
	}
	if _, exists := m[key]; !exists {
		return nil
	}
	delete(m, key)

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(s.filename(queue), b, 0600)
}
