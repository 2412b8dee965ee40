package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"speech-practice/models"
	"speech-practice/observe"
	"speech-practice/storage"
	"speech-practice/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gorm.io/gorm"
)

const uploadConcurrency = 4

var requiredCSVColumns = []string{"audio_filename", "text", "level"}

// ImportService runs the two-phase bulk import: audio files go to object
// storage under an upload session, then a CSV creates speeches referencing
// those files by their stored names.
type ImportService struct {
	DB       *gorm.DB
	Store    storage.ObjectStore
	Registry *UploadRegistry

	metrics *observe.Metrics
}

func NewImportService(db *gorm.DB, store storage.ObjectStore, registry *UploadRegistry) *ImportService {
	return &ImportService{DB: db, Store: store, Registry: registry, metrics: observe.DefaultMetrics()}
}

type AudioFile struct {
	Filename string
	Data     []byte
}

type UploadResult struct {
	UploadSessionID string         `json:"upload_session_id"`
	Files           []UploadedFile `json:"files"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type CreatedSpeech struct {
	Row      int    `json:"row"`
	SpeechID string `json:"speech_id"`
	Text     string `json:"text"`
}

type ImportResult struct {
	SuccessCount    int             `json:"success_count"`
	ErrorCount      int             `json:"error_count"`
	CreatedSpeeches []CreatedSpeech `json:"created_speeches"`
	Errors          []RowError      `json:"errors"`
}

// UploadAudioFiles validates every file before storing any of them. If a put
// fails, objects already written by this call are deleted and no session is
// registered.
func (s *ImportService) UploadAudioFiles(ctx context.Context, files []AudioFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, Validation("no files provided")
	}
	var issues []string
	for _, f := range files {
		if err := utils.ValidateAudioFile(f.Filename, int64(len(f.Data))); err != nil {
			issues = append(issues, err.Error())
		}
	}
	if len(issues) > 0 {
		return nil, Validation("invalid audio files", issues...)
	}

	sessionID := uuid.NewString()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f.Filename)
	}
	stored := disambiguateFilenames(names)
	keys := storageKeys(sessionID, stored)

	uploaded := make([]UploadedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i := range files {
		g.Go(func() error {
			url, err := s.Store.Put(gctx, keys[i], files[i].Data, utils.AudioContentType(stored[i]))
			if err != nil {
				return fmt.Errorf("upload %s: %w", names[i], err)
			}
			uploaded[i] = UploadedFile{
				ID:               uuid.NewString(),
				OriginalFilename: names[i],
				StoredFilename:   stored[i],
				StorageKey:       keys[i],
				StorageURL:       url,
				SizeBytes:        int64(len(files[i].Data)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.discardUploads(uploaded)
		log.Printf("❌ [Import] Upload session %s failed: %v", sessionID, err)
		return nil, StorageFailure("failed to upload audio files", err)
	}

	session := &UploadSession{
		ID:        sessionID,
		CreatedAt: time.Now(),
		Files:     make(map[string]UploadedFile, len(uploaded)),
	}
	for _, f := range uploaded {
		session.Files[f.StoredFilename] = f
	}
	s.Registry.Put(session)
	log.Printf("✅ [Import] Upload session %s registered with %d files", sessionID, len(uploaded))

	return &UploadResult{
		UploadSessionID: sessionID,
		Files:           uploaded,
		ExpiresAt:       s.Registry.ExpiresAt(session),
	}, nil
}

// UploadAudioArchive unpacks a zip of recordings and uploads them as one
// session.
func (s *ImportService) UploadAudioArchive(ctx context.Context, archive []byte) (*UploadResult, error) {
	entries, err := utils.ExtractAudioArchive(archive)
	if err != nil {
		return nil, Validation("invalid archive", err.Error())
	}
	files := make([]AudioFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, AudioFile{Filename: e.Name, Data: e.Data})
	}
	return s.UploadAudioFiles(ctx, files)
}

// discardUploads is the compensating delete for a failed upload call. It runs
// on a fresh context because the request context is usually already done.
func (s *ImportService) discardUploads(files []UploadedFile) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, f := range files {
		if f.StorageKey == "" {
			continue
		}
		if err := s.Store.Delete(ctx, f.StorageKey); err != nil {
			log.Printf("⚠️  [Import] Could not remove orphaned object %s: %v", f.StorageKey, err)
		}
	}
}

// disambiguateFilenames keeps the first occurrence of a name and suffixes
// later ones: a.mp3, a_1.mp3, a_2.mp3. A suffixed name that collides with a
// literal one keeps counting.
func disambiguateFilenames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	counters := make(map[string]int)

	for i, name := range names {
		candidate := name
		if used[candidate] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for used[candidate] {
				counters[name]++
				candidate = fmt.Sprintf("%s_%d%s", stem, counters[name], ext)
			}
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// storageKeys derives uploads/<session>/<slug><ext> keys. A key that is
// already taken gets a -N suffix, counting up until it is free.
func storageKeys(sessionID string, stored []string) []string {
	keys := make([]string, len(stored))
	used := make(map[string]bool, len(stored))
	counters := make(map[string]int)
	for i, name := range stored {
		ext := strings.ToLower(filepath.Ext(name))
		base := slugOrDefault(strings.TrimSuffix(name, filepath.Ext(name)), "audio")
		candidate := base + ext
		for used[candidate] {
			counters[base+ext]++
			candidate = fmt.Sprintf("%s-%d%s", base, counters[base+ext], ext)
		}
		used[candidate] = true
		keys[i] = fmt.Sprintf("uploads/%s/%s", sessionID, candidate)
	}
	return keys
}

type csvRow struct {
	row      int
	filename string
	text     string
	level    models.Level
	kind     models.SpeechType
	tags     []string
	file     UploadedFile
}

// ImportCSV validates every row against the upload session and creates the
// speeches in one transaction only if no row failed. Row errors are returned
// in the result, not as an error.
func (s *ImportService) ImportCSV(ctx context.Context, data []byte, uploadSessionID string) (*ImportResult, error) {
	session, ok := s.Registry.Get(uploadSessionID)
	if !ok {
		return nil, Validation("upload session not found or expired")
	}

	reader := csv.NewReader(transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, Validation("CSV file is empty")
	}
	if err != nil {
		return nil, Validation("malformed CSV", err.Error())
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missingCols []string
	for _, c := range requiredCSVColumns {
		if _, ok := cols[c]; !ok {
			missingCols = append(missingCols, c)
		}
	}
	if len(missingCols) > 0 {
		return nil, Validation("CSV is missing required columns", missingCols...)
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	result := &ImportResult{CreatedSpeeches: []CreatedSpeech{}, Errors: []RowError{}}
	var rows []csvRow
	seen := make(map[string]int)
	// Row 1 is the header; blank records are skipped without being counted.
	rowNum := 1

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Validation("malformed CSV", err.Error())
		}
		if isBlankRecord(rec) {
			continue
		}
		rowNum++

		row, rowErr := validateCSVRow(rowNum, rec, field, seen, session)
		if rowErr != "" {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: rowErr})
			continue
		}
		rows = append(rows, row)
	}

	if len(result.Errors) > 0 {
		result.ErrorCount = len(result.Errors)
		s.metrics.ImportRowErrors.Add(ctx, int64(result.ErrorCount))
		log.Printf("⚠️  [Import] CSV for session %s rejected: %d invalid rows", uploadSessionID, result.ErrorCount)
		return result, nil
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tagCache := make(map[string]models.Tag)
		for _, r := range rows {
			tags := make([]models.Tag, 0, len(r.tags))
			for _, name := range r.tags {
				tag, err := getOrCreateTag(tx, tagCache, name)
				if err != nil {
					return fmt.Errorf("row %d: tag %q: %w", r.row, name, err)
				}
				tags = append(tags, tag)
			}

			sp := models.Speech{
				AudioURL: r.file.StorageURL,
				Text:     r.text,
				Level:    r.level,
				Type:     r.kind,
				Tags:     tags,
			}
			if err := tx.Create(&sp).Error; err != nil {
				return fmt.Errorf("row %d: %w", r.row, err)
			}
			result.CreatedSpeeches = append(result.CreatedSpeeches, CreatedSpeech{Row: r.row, SpeechID: sp.ID, Text: sp.Text})
		}
		return nil
	})
	if err != nil {
		log.Printf("DB Error importing CSV for session %s: %v", uploadSessionID, err)
		return nil, Infrastructure("failed to import speeches", err)
	}

	result.SuccessCount = len(result.CreatedSpeeches)
	s.metrics.ImportedSpeeches.Add(ctx, int64(result.SuccessCount))
	log.Printf("✅ [Import] Created %d speeches from session %s", result.SuccessCount, uploadSessionID)
	return result, nil
}

// validateCSVRow reports the first problem with a row, or "" when it is fine.
func validateCSVRow(rowNum int, rec []string, field func([]string, string) string, seen map[string]int, session *UploadSession) (csvRow, string) {
	filename := field(rec, "audio_filename")
	if filename == "" {
		return csvRow{}, "audio_filename is required"
	}
	if first, dup := seen[filename]; dup {
		return csvRow{}, fmt.Sprintf("audio_filename %q is duplicated (first used on row %d)", filename, first)
	}
	seen[filename] = rowNum

	file, ok := session.Files[filename]
	if !ok {
		return csvRow{}, fmt.Sprintf("audio file %q not found in upload session", filename)
	}

	text := field(rec, "text")
	if text == "" {
		return csvRow{}, "text is required"
	}
	if len(text) > maxTextLength {
		return csvRow{}, fmt.Sprintf("text must be at most %d characters", maxTextLength)
	}

	rawLevel := field(rec, "level")
	if rawLevel == "" {
		return csvRow{}, "level is required"
	}
	level, ok := models.ParseLevel(rawLevel)
	if !ok {
		return csvRow{}, fmt.Sprintf("invalid level %q (must be one of %v)", rawLevel, models.Levels)
	}

	rawType := field(rec, "type")
	kind, ok := models.ParseSpeechType(rawType)
	if !ok {
		return csvRow{}, fmt.Sprintf("invalid type %q (must be question or answer)", rawType)
	}

	tags := uniqueStrings(strings.Split(field(rec, "tags"), ","))
	for _, t := range tags {
		if len(t) > 100 {
			return csvRow{}, fmt.Sprintf("tag %q is longer than 100 characters", t)
		}
	}

	return csvRow{
		row:      rowNum,
		filename: filename,
		text:     text,
		level:    level,
		kind:     kind,
		tags:     tags,
		file:     file,
	}, ""
}

func getOrCreateTag(tx *gorm.DB, cache map[string]models.Tag, name string) (models.Tag, error) {
	if tag, ok := cache[name]; ok {
		return tag, nil
	}
	tag, _, err := findOrCreateTag(tx, name, models.TagCategoryImported)
	if err != nil {
		return tag, err
	}
	cache[name] = tag
	return tag, nil
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
