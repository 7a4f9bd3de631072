package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/paddocklabs/docmirror/pkg/document"
	"github.com/paddocklabs/docmirror/pkg/logging"
)

// Schema versions tag the persisted files so field changes can be migrated
// instead of guessed at. The processed file moved to an ordered list in
// version 2; version 1 stored a URL-keyed map that lost insertion order.
const (
	knownSchemaVersion     = 1
	processedSchemaVersion = 2
)

const (
	knownFileName     = "known_pdfs.json"
	processedFileName = "processed_pdfs.json"
)

type knownFile struct {
	Version int      `json:"version"`
	URLs    []string `json:"urls"`
}

type processedFile struct {
	Version   int                          `json:"version"`
	Documents []document.ProcessedDocument `json:"documents"`
}

// processedFileV1 is the first-generation layout, kept readable for upgrades.
type processedFileV1 struct {
	Documents map[string]document.ProcessedDocument `json:"documents"`
}

// Store persists the known-URL set and the processed-document mapping as two
// small JSON files. Both grow monotonically and are never pruned. Writes go
// through a temp file and rename so a crash never leaves a torn file behind.
type Store struct {
	dir       string
	known     map[string]struct{}
	processed map[string]document.ProcessedDocument
	order     []string // processed URLs, first-recorded first
	logger    zerolog.Logger
}

// Open loads the state files from dir, creating the directory if needed.
// Missing files mean a first run and are not an error. The known file also
// accepts the legacy un-versioned format (a bare list of reference records).
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}

	s := &Store{
		dir:       dir,
		known:     make(map[string]struct{}),
		processed: make(map[string]document.ProcessedDocument),
		logger:    logging.GetLogger("state"),
	}
	if err := s.loadKnown(); err != nil {
		return nil, err
	}
	if err := s.loadProcessed(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("known", len(s.known)).
		Int("processed", len(s.processed)).
		Msg("Loaded state")
	return s, nil
}

func (s *Store) knownPath() string     { return filepath.Join(s.dir, knownFileName) }
func (s *Store) processedPath() string { return filepath.Join(s.dir, processedFileName) }

func (s *Store) loadKnown() error {
	data, err := os.ReadFile(s.knownPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading known set: %w", err)
	}

	var kf knownFile
	if err := json.Unmarshal(data, &kf); err == nil && kf.Version >= 1 {
		for _, u := range kf.URLs {
			s.known[u] = struct{}{}
		}
		return nil
	}

	// Legacy format: a bare array of {url, title, date} records.
	var legacy []document.PdfReference
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("parsing known set: %w", err)
	}
	for _, ref := range legacy {
		s.known[ref.URL] = struct{}{}
	}
	return nil
}

func (s *Store) loadProcessed() error {
	data, err := os.ReadFile(s.processedPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading processed map: %w", err)
	}

	var pf processedFile
	if err := json.Unmarshal(data, &pf); err == nil && pf.Version >= processedSchemaVersion {
		for _, doc := range pf.Documents {
			if _, ok := s.processed[doc.URL]; !ok {
				s.order = append(s.order, doc.URL)
			}
			s.processed[doc.URL] = doc
		}
		return nil
	}

	// Version 1 stored a URL-keyed map with no recorded order; those entries
	// adopt URL order once and keep it from there on.
	var v1 processedFileV1
	if err := json.Unmarshal(data, &v1); err != nil {
		return fmt.Errorf("parsing processed map: %w", err)
	}
	urls := make([]string, 0, len(v1.Documents))
	for u := range v1.Documents {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	for _, u := range urls {
		s.processed[u] = v1.Documents[u]
		s.order = append(s.order, u)
	}
	return nil
}

// IsKnown reports whether the URL has been seen by any previous run.
func (s *Store) IsKnown(url string) bool {
	_, ok := s.known[url]
	return ok
}

// FilterNew drops references whose URL is already known, marks the survivors
// known and persists the set immediately. Marking happens before download or
// conversion: a crash mid-run will not reprocess these URLs on the next run
// (at-most-once, not at-least-once).
func (s *Store) FilterNew(refs []document.PdfReference) ([]document.PdfReference, error) {
	var fresh []document.PdfReference
	for _, ref := range refs {
		if s.IsKnown(ref.URL) {
			continue
		}
		s.known[ref.URL] = struct{}{}
		fresh = append(fresh, ref)
	}
	if len(fresh) > 0 {
		if err := s.saveKnown(); err != nil {
			return nil, err
		}
	}
	return fresh, nil
}

// Unknown returns the subset of refs not yet known, without mutating state.
// Used by dry-run discovery.
func (s *Store) Unknown(refs []document.PdfReference) []document.PdfReference {
	var fresh []document.PdfReference
	for _, ref := range refs {
		if !s.IsKnown(ref.URL) {
			fresh = append(fresh, ref)
		}
	}
	return fresh
}

// RecordProcessed stores a converted document and persists the list.
// Re-recording a URL replaces its entry but keeps its original position.
func (s *Store) RecordProcessed(doc document.ProcessedDocument) error {
	if _, ok := s.processed[doc.URL]; !ok {
		s.order = append(s.order, doc.URL)
	}
	s.processed[doc.URL] = doc
	return s.saveProcessed()
}

// Processed returns all processed documents in the order they were first
// recorded. The order is persisted, so it survives restarts; the index
// builder's stable date sort therefore ties equal dates the same way across
// processes.
func (s *Store) Processed() []document.ProcessedDocument {
	docs := make([]document.ProcessedDocument, 0, len(s.order))
	for _, u := range s.order {
		docs = append(docs, s.processed[u])
	}
	return docs
}

func (s *Store) saveKnown() error {
	urls := make([]string, 0, len(s.known))
	for u := range s.known {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	data, err := json.MarshalIndent(knownFile{Version: knownSchemaVersion, URLs: urls}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.knownPath(), data)
}

func (s *Store) saveProcessed() error {
	data, err := json.MarshalIndent(processedFile{
		Version:   processedSchemaVersion,
		Documents: s.Processed(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.processedPath(), data)
}

// writeFileAtomic writes data to a sibling temp file and renames it over the
// target, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
