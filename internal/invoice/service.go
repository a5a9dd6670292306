package invoice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-extract/internal/scanning"
)

var (
	// ErrUnknownProvider is returned for providers the service was not configured with
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrNoHistory is returned by history operations when no database is configured
	ErrNoHistory = errors.New("no history database configured")
)

// DocumentProcessor runs a document through an asynchronous document API
type DocumentProcessor interface {
	Process(ctx context.Context, data []byte, filename string) (*scanning.PollResult, error)
}

// IDGenerator generates unique IDs for extractions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs documents through the configured providers. The database and
// storage are optional.
type Service struct {
	db          DB
	storage     Storage
	scanners    map[string]scanning.Scanner
	processor   DocumentProcessor
	idGenerator IDGenerator
	timeSource  TimeSource
	reuse       bool
}

// NewService creates a new Service with uuid IDs and the wall clock
func NewService(db DB, storage Storage, scanners map[string]scanning.Scanner, processor DocumentProcessor) *Service {
	return NewServiceWithDeps(db, storage, scanners, processor, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, scanners map[string]scanning.Scanner, processor DocumentProcessor, idGen IDGenerator, timeSrc TimeSource) *Service {
	if scanners == nil {
		scanners = map[string]scanning.Scanner{}
	}
	return &Service{
		db:          db,
		storage:     storage,
		scanners:    scanners,
		processor:   processor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// EnableReuse makes Extract return a stored extraction of the same document
// by the same provider instead of calling the provider again
func (s *Service) EnableReuse() {
	s.reuse = true
}

// HasProvider reports whether the service can run provider
func (s *Service) HasProvider(provider string) bool {
	if provider == ProviderDocuPanda {
		return s.processor != nil
	}
	_, ok := s.scanners[provider]
	return ok
}

// Extract runs one document through provider
func (s *Service) Extract(ctx context.Context, provider, filename string, data []byte, contentType string) (*Extraction, error) {
	if !s.HasProvider(provider) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	if s.reuse && s.db != nil {
		previous, err := s.db.FindExtraction(provider, digest)
		switch {
		case err == nil && previous.State == scanning.PollExhausted:
			slog.Info("Previous extraction never completed, running again", "id", previous.ID, "provider", provider, "filename", filename)
		case err == nil:
			slog.Info("Reusing previous extraction", "id", previous.ID, "provider", provider, "filename", filename)
			previous.Reused = true
			return previous, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("looking up previous extraction: %w", err)
		}
	}

	extraction := &Extraction{
		ID:          s.idGenerator.Generate(),
		Provider:    provider,
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		Digest:      digest,
		CreatedAt:   s.timeSource.Now(),
	}

	if provider == ProviderDocuPanda {
		result, err := s.processor.Process(ctx, data, extraction.Filename)
		if err != nil {
			return nil, fmt.Errorf("processing document: %w", err)
		}
		extraction.DocumentID = result.DocumentID
		extraction.State = result.State
		extraction.Document = result.Body
	} else {
		inv, err := s.scanners[provider].ScanInvoice(ctx, data, contentType)
		if err != nil {
			slog.Error("Failed to scan invoice",
				"provider", provider,
				"filename", filename,
				"content_type", contentType,
				"file_size", len(data),
				"error", err,
			)
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}
		extraction.Invoice = inv
	}

	if s.storage != nil {
		if err := s.saveOutput(extraction); err != nil {
			return nil, err
		}
	}

	if s.db != nil {
		if err := s.db.SaveExtraction(extraction); err != nil {
			if extraction.OutputPath != "" {
				if delErr := s.storage.Delete(extraction.OutputPath); delErr != nil {
					slog.Warn("Failed to delete output file", "path", extraction.OutputPath, "error", delErr)
				}
			}
			return nil, fmt.Errorf("saving extraction to database: %w", err)
		}
	}

	return extraction, nil
}

func (s *Service) saveOutput(extraction *Extraction) error {
	name := fmt.Sprintf("%s_%s.json", extraction.ID, sanitizeFilename(extraction.Filename))
	extraction.OutputPath = name

	data, err := json.MarshalIndent(extraction, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling extraction: %w", err)
	}

	if _, err := s.storage.Save(name, data); err != nil {
		return fmt.Errorf("saving output file: %w", err)
	}
	return nil
}

// GetExtraction retrieves an extraction by ID
func (s *Service) GetExtraction(id string) (*Extraction, error) {
	if s.db == nil {
		return nil, ErrNoHistory
	}
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}
	return extraction, nil
}

// ListExtractions returns all stored extractions
func (s *Service) ListExtractions() ([]*Extraction, error) {
	if s.db == nil {
		return nil, ErrNoHistory
	}
	extractions, err := s.db.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	return extractions, nil
}

// DeleteExtraction removes an extraction and its output file
func (s *Service) DeleteExtraction(id string) error {
	if s.db == nil {
		return ErrNoHistory
	}
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return fmt.Errorf("getting extraction for deletion: %w", err)
	}

	if extraction.OutputPath != "" && s.storage != nil {
		if err := s.storage.Delete(extraction.OutputPath); err != nil {
			slog.Warn("Failed to delete output file", "path", extraction.OutputPath, "error", err)
		}
	}

	if err := s.db.DeleteExtraction(id); err != nil {
		return fmt.Errorf("deleting extraction from database: %w", err)
	}
	return nil
}

// Close closes every scanner and the history database
func (s *Service) Close() error {
	var errs []error
	for _, scanner := range s.scanners {
		errs = append(errs, scanner.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename reduces a document name to a short, filesystem-safe stem
func sanitizeFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_ ")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}
	return base
}
