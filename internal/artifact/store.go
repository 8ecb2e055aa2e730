// Package artifact persists model versions on the local filesystem.
//
// Every version is three files sharing one version id:
//
//	vectorizer_<version>.gob
//	sentiment_model_<version>.gob
//	manifest_<version>.json
//
// The manifest is written last and carries the sha256 of both payloads, so a
// version without a manifest was never completely written.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/crimson-sun/tonal/internal/engine"
	"github.com/crimson-sun/tonal/internal/engine/classifier"
	"github.com/crimson-sun/tonal/internal/engine/vectorizer"
	"github.com/crimson-sun/tonal/internal/metrics"
	"github.com/crimson-sun/tonal/internal/model"
)

// Series names one of the three file families in the store.
type Series string

const (
	SeriesVectorizer Series = "vectorizer"
	SeriesClassifier Series = "sentiment_model"
	SeriesManifest   Series = "manifest"
)

var allSeries = []Series{SeriesVectorizer, SeriesClassifier, SeriesManifest}

func (s Series) ext() string {
	if s == SeriesManifest {
		return ".json"
	}
	return ".gob"
}

func (s Series) fileName(version string) string {
	return string(s) + "_" + version + s.ext()
}

const versionLayout = "20060102_150405"

var versionPattern = regexp.MustCompile(`^\d{8}_\d{6}_\d{3}$`)

// Manifest describes one persisted version.
type Manifest struct {
	Version          string    `json:"version"`
	Policy           string    `json:"policy"`
	CreatedAt        time.Time `json:"created_at"`
	ExamplesUsed     int       `json:"examples_used"`
	VocabularySize   int       `json:"vocabulary_size"`
	Classes          []int     `json:"classes"`
	VectorizerSHA256 string    `json:"vectorizer_sha256"`
	ClassifierSHA256 string    `json:"classifier_sha256"`
}

// envelope wraps each payload so a file carries the version it was written under.
type envelope struct {
	Version string
	Data    []byte
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to mint version ids. Default: the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Store is a filesystem artifact store. Persist and Cleanup are serialized;
// reads share the lock so Cleanup never removes files a read has listed.
type Store struct {
	dir   string
	clock clockwork.Clock
	mu    sync.RWMutex
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create %s: %w", dir, err)
	}
	s := &Store{dir: dir, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir is the store root.
func (s *Store) Dir() string { return s.dir }

// Persist writes the engine's vectorizer and classifier under one new version
// id and returns it. Partial writes are removed on failure.
func (s *Store) Persist(ctx context.Context, eng *engine.Engine, examplesUsed int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	version, err := s.nextVersion()
	if err != nil {
		return "", err
	}

	vecData, err := eng.Vectorizer().MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("artifact: %w: %w", model.ErrPersistenceFailure, err)
	}
	clsData, err := eng.Classifier().MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("artifact: %w: %w", model.ErrPersistenceFailure, err)
	}

	var written []string
	fail := func(err error) (string, error) {
		for _, p := range written {
			_ = os.Remove(p)
		}
		return "", fmt.Errorf("artifact: persist %s: %w: %w", version, model.ErrPersistenceFailure, err)
	}

	vecSum, path, err := s.writePayload(SeriesVectorizer, version, vecData)
	if err != nil {
		return fail(err)
	}
	written = append(written, path)

	clsSum, path, err := s.writePayload(SeriesClassifier, version, clsData)
	if err != nil {
		return fail(err)
	}
	written = append(written, path)

	classes := eng.Classifier().Classes()
	m := Manifest{
		Version:          version,
		Policy:           eng.Policy().String(),
		CreatedAt:        s.clock.Now().UTC(),
		ExamplesUsed:     examplesUsed,
		VocabularySize:   eng.Vectorizer().Dim(),
		Classes:          make([]int, len(classes)),
		VectorizerSHA256: vecSum,
		ClassifierSHA256: clsSum,
	}
	for i, c := range classes {
		m.Classes[i] = int(c)
	}
	mData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fail(err)
	}
	if err := s.writeAtomic(SeriesManifest.fileName(version), mData); err != nil {
		return fail(err)
	}

	metrics.ArtifactsPersistedTotal.Inc()
	slog.InfoContext(ctx, "artifact persisted", "version", version, "dir", s.dir)
	return version, nil
}

// ResolveLatest loads the greatest version present in both payload series and
// backed by a manifest.
func (s *Store) ResolveLatest(ctx context.Context) (*engine.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, err := s.list()
	if err != nil {
		return nil, err
	}
	if len(listing[SeriesVectorizer]) == 0 || len(listing[SeriesClassifier]) == 0 {
		return nil, fmt.Errorf("artifact: %s: %w", s.dir, model.ErrNotFound)
	}
	complete := completeVersions(listing)
	if len(complete) == 0 {
		return nil, fmt.Errorf("artifact: no version has both payloads and a manifest: %w", model.ErrCorruptArtifact)
	}
	return s.load(complete[len(complete)-1])
}

// Load loads one specific version.
func (s *Store) Load(ctx context.Context, version string) (*engine.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !versionPattern.MatchString(version) {
		return nil, fmt.Errorf("artifact: invalid version %q: %w", version, model.ErrNotFound)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(version)
}

// Versions lists complete versions in ascending order.
func (s *Store) Versions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, err := s.list()
	if err != nil {
		return nil, err
	}
	return completeVersions(listing), nil
}

// Manifest reads the manifest of one version.
func (s *Store) Manifest(version string) (Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest(version)
}

func (s *Store) manifest(version string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(s.dir, SeriesManifest.fileName(version)))
	if errors.Is(err, fs.ErrNotExist) {
		return m, fmt.Errorf("artifact: manifest %s: %w", version, model.ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("artifact: read manifest %s: %w", version, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("artifact: manifest %s: %w: %w", version, model.ErrCorruptArtifact, err)
	}
	if m.Version != version {
		return m, fmt.Errorf("artifact: manifest %s names version %q: %w", version, m.Version, model.ErrCorruptArtifact)
	}
	return m, nil
}

// Cleanup trims each series independently to its newest keep entries.
// Protected versions are never removed. Delete failures are logged and joined
// into the returned error; the remaining deletions still run.
func (s *Store) Cleanup(ctx context.Context, keep int, protect ...string) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("artifact: cleanup keep must be >= 1, got %d", keep)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.list()
	if err != nil {
		return 0, err
	}

	var (
		removed int
		errs    []error
	)
	for _, series := range allSeries {
		versions := listing[series]
		if len(versions) <= keep {
			continue
		}
		for _, v := range versions[:len(versions)-keep] {
			if slices.Contains(protect, v) {
				continue
			}
			path := filepath.Join(s.dir, series.fileName(v))
			if err := os.Remove(path); err != nil {
				slog.WarnContext(ctx, "artifact cleanup: remove failed", "path", path, "error", err)
				errs = append(errs, err)
				continue
			}
			removed++
			metrics.ArtifactsRemovedTotal.WithLabelValues(string(series)).Inc()
			slog.DebugContext(ctx, "artifact removed", "path", path)
		}
	}
	if removed > 0 {
		slog.InfoContext(ctx, "artifact cleanup", "removed", removed, "keep", keep)
	}
	return removed, errors.Join(errs...)
}

func (s *Store) load(version string) (*engine.Engine, error) {
	m, err := s.manifest(version)
	if err != nil {
		return nil, err
	}
	policy, err := model.ParseLabelPolicy(m.Policy)
	if err != nil {
		return nil, fmt.Errorf("artifact: manifest %s: %w: %w", version, model.ErrCorruptArtifact, err)
	}

	vecData, err := s.readPayload(SeriesVectorizer, version, m.VectorizerSHA256)
	if err != nil {
		return nil, err
	}
	clsData, err := s.readPayload(SeriesClassifier, version, m.ClassifierSHA256)
	if err != nil {
		return nil, err
	}

	vec, err := vectorizer.Decode(vecData)
	if err != nil {
		return nil, fmt.Errorf("artifact: %s: %w: %w", version, model.ErrCorruptArtifact, err)
	}
	cls, err := classifier.Decode(clsData)
	if err != nil {
		return nil, fmt.Errorf("artifact: %s: %w: %w", version, model.ErrCorruptArtifact, err)
	}
	return engine.New(vec, cls, policy, version)
}

func (s *Store) readPayload(series Series, version, wantSum string) ([]byte, error) {
	name := series.fileName(version)
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact: %s: %w", name, model.ErrCorruptArtifact)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", name, err)
	}
	if sum := checksum(raw); sum != wantSum {
		return nil, fmt.Errorf("artifact: %s checksum %s, manifest says %s: %w", name, sum, wantSum, model.ErrCorruptArtifact)
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return nil, fmt.Errorf("artifact: %s: %w: %w", name, model.ErrCorruptArtifact, err)
	}
	if env.Version != version {
		return nil, fmt.Errorf("artifact: %s carries version %q: %w", name, env.Version, model.ErrCorruptArtifact)
	}
	return env.Data, nil
}

func (s *Store) writePayload(series Series, version string, data []byte) (sum, path string, err error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Version: version, Data: data}); err != nil {
		return "", "", err
	}
	name := series.fileName(version)
	if err := s.writeAtomic(name, buf.Bytes()); err != nil {
		return "", "", err
	}
	return checksum(buf.Bytes()), filepath.Join(s.dir, name), nil
}

// writeAtomic writes data to a temp file in the store, fsyncs it and renames
// it into place.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// nextVersion mints a version id from the clock that sorts after every
// version already on disk. Caller holds s.mu.
func (s *Store) nextVersion() (string, error) {
	listing, err := s.list()
	if err != nil {
		return "", err
	}
	candidate := s.clock.Now().UTC().Format(versionLayout) + "_000"

	var latest string
	for _, series := range allSeries {
		if vs := listing[series]; len(vs) > 0 && vs[len(vs)-1] > latest {
			latest = vs[len(vs)-1]
		}
	}
	if latest < candidate {
		return candidate, nil
	}
	n, _ := strconv.Atoi(latest[len(latest)-3:])
	if n >= 999 {
		return "", fmt.Errorf("artifact: version counter exhausted after %s: %w", latest, model.ErrPersistenceFailure)
	}
	return fmt.Sprintf("%s_%03d", latest[:len(latest)-4], n+1), nil
}

// list returns the versions of every series, each sorted ascending.
func (s *Store) list() (map[Series][]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[Series][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: list %s: %w", s.dir, err)
	}
	out := make(map[Series][]string, len(allSeries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if series, version, ok := parseName(e.Name()); ok {
			out[series] = append(out[series], version)
		}
	}
	for _, vs := range out {
		slices.Sort(vs)
	}
	return out, nil
}

// parseName splits an artifact file name into series and version.
// Temp files and foreign files are rejected.
func parseName(name string) (Series, string, bool) {
	for _, series := range allSeries {
		prefix := string(series) + "_"
		if len(name) <= len(prefix)+len(series.ext()) || name[:len(prefix)] != prefix {
			continue
		}
		rest := name[len(prefix):]
		if filepath.Ext(rest) != series.ext() {
			continue
		}
		version := rest[:len(rest)-len(series.ext())]
		if versionPattern.MatchString(version) {
			return series, version, true
		}
	}
	return "", "", false
}

// completeVersions returns versions present in every series, ascending.
func completeVersions(listing map[Series][]string) []string {
	var out []string
	for _, v := range listing[SeriesVectorizer] {
		if slices.Contains(listing[SeriesClassifier], v) && slices.Contains(listing[SeriesManifest], v) {
			out = append(out, v)
		}
	}
	return out
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
