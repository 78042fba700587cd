// Package sqlite writes tagging results to a SQLite database.
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/pipeline"
)

// Date format for RunTable (ISO 8601)
const runDateFormat = time.RFC3339

const schema = `
CREATE TABLE IF NOT EXISTS RunTable (
	RunId TEXT PRIMARY KEY,
	StartDate TEXT,
	EndDate TEXT,
	Command TEXT,
	Description TEXT,
	SpectrumCount INTEGER,
	SkippedCount INTEGER,
	TagCount INTEGER
);

CREATE TABLE IF NOT EXISTS SpectrumTable (
	SpectrumId INTEGER PRIMARY KEY,
	RunId TEXT REFERENCES RunTable(RunId),
	Title TEXT,
	SourceFile TEXT,
	ScanNumber INTEGER,
	Sequence TEXT,
	Modifications TEXT,
	PrecursorMZ DOUBLE,
	FileCharge INTEGER,
	RetentionTime DOUBLE,
	blobMass BLOB,
	blobIntensity BLOB
);

CREATE TABLE IF NOT EXISTS TweakTable (
	SpectrumId INTEGER REFERENCES SpectrumTable(SpectrumId),
	Rank INTEGER,
	Charge INTEGER,
	ParentMass DOUBLE
);

CREATE TABLE IF NOT EXISTS TagTable (
	SpectrumId INTEGER REFERENCES SpectrumTable(SpectrumId),
	Rank INTEGER,
	Residues TEXT,
	Annotated TEXT,
	PrefixMass DOUBLE,
	SuffixMass DOUBLE,
	Score DOUBLE,
	Skew DOUBLE,
	AbsSkew DOUBLE,
	Charge INTEGER,
	ParentMass DOUBLE
);

CREATE TABLE IF NOT EXISTS CutScoreTable (
	SpectrumId INTEGER REFERENCES SpectrumTable(SpectrumId),
	Peptide TEXT,
	Cut INTEGER,
	Score DOUBLE
);
`

// Writer writes one run to a SQLite database file. It is not safe for
// concurrent use; the pipeline hands results over in input order.
type Writer struct {
	db         *sql.DB
	outputPath string
	runID      string
	command    string
	started    time.Time
	spectrumID int64

	spectrumStmt *sql.Stmt
	tweakStmt    *sql.Stmt
	tagStmt      *sql.Stmt
	cutStmt      *sql.Stmt
}

// NewWriter opens (or creates) outputPath and starts a run recorded under a fresh id.
func NewWriter(outputPath, command string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		runID:      uuid.NewString(),
		command:    command,
		started:    time.Now(),
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := db.QueryRow(`SELECT COALESCE(MAX(SpectrumId), 0) FROM SpectrumTable`).Scan(&w.spectrumID); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read spectrum ids: %w", err)
	}
	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// RunID returns the id of the run being written.
func (w *Writer) RunID() string {
	return w.runID
}

func (w *Writer) prepareStatements() error {
	var err error
	w.spectrumStmt, err = w.db.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, RunId, Title, SourceFile, ScanNumber, Sequence, Modifications,
			PrecursorMZ, FileCharge, RetentionTime, blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	w.tweakStmt, err = w.db.Prepare(`
		INSERT INTO TweakTable (SpectrumId, Rank, Charge, ParentMass) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tweak statement: %w", err)
	}

	w.tagStmt, err = w.db.Prepare(`
		INSERT INTO TagTable (
			SpectrumId, Rank, Residues, Annotated, PrefixMass, SuffixMass,
			Score, Skew, AbsSkew, Charge, ParentMass
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag statement: %w", err)
	}

	w.cutStmt, err = w.db.Prepare(`
		INSERT INTO CutScoreTable (SpectrumId, Peptide, Cut, Score) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cut score statement: %w", err)
	}
	return nil
}

// writeSpectrum inserts spec inside tx and returns its id.
func (w *Writer) writeSpectrum(tx *sql.Tx, spec *core.Spectrum) (int64, error) {
	w.spectrumID++
	var rt interface{}
	if spec.RetentionTime != nil {
		rt = *spec.RetentionTime
	}
	var charge interface{}
	if spec.Charge > 0 {
		charge = spec.Charge
	}
	_, err := tx.Stmt(w.spectrumStmt).Exec(
		w.spectrumID,
		w.runID,
		spec.Name(),
		spec.SourceFile,
		spec.ScanNumber,
		spec.Sequence,
		spec.ModString(),
		spec.PrecursorMZ,
		charge,
		rt,
		encodePeaksFloat64(spec.Peaks, true),
		encodePeaksFloat64(spec.Peaks, false),
	)
	if err != nil {
		w.spectrumID--
		return 0, fmt.Errorf("failed to insert spectrum %s: %w", spec.Name(), err)
	}
	return w.spectrumID, nil
}

// WriteResult stores a spectrum with its tweaks and ranked tags.
func (w *Writer) WriteResult(res *pipeline.Result) error {
	return w.inTx(func(tx *sql.Tx) error {
		id, err := w.writeSpectrum(tx, res.Spectrum)
		if err != nil {
			return err
		}
		for rank, tw := range res.Tweaks {
			if _, err := tx.Stmt(w.tweakStmt).Exec(id, rank, tw.Charge, tw.ParentMass); err != nil {
				return fmt.Errorf("failed to insert tweak: %w", err)
			}
		}
		for rank, tag := range res.Tags {
			_, err := tx.Stmt(w.tagStmt).Exec(
				id, rank, tag.Residues, tag.Annotated(),
				tag.PrefixMass, tag.SuffixMass,
				tag.Score, tag.Skew, tag.AbsSkew,
				tag.Charge, tag.ParentMass,
			)
			if err != nil {
				return fmt.Errorf("failed to insert tag: %w", err)
			}
		}
		return nil
	})
}

// WriteCutScores stores the cut point scores of an annotated spectrum.
func (w *Writer) WriteCutScores(spec *core.Spectrum, pep *core.Peptide, scores []float64) error {
	return w.inTx(func(tx *sql.Tx) error {
		id, err := w.writeSpectrum(tx, spec)
		if err != nil {
			return err
		}
		for cut, score := range scores {
			if _, err := tx.Stmt(w.cutStmt).Exec(id, pep.String(), cut, score); err != nil {
				return fmt.Errorf("failed to insert cut score: %w", err)
			}
		}
		return nil
	})
}

func (w *Writer) inTx(fn func(*sql.Tx) error) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// encodePeaksFloat64 encodes peak masses or intensities as a little-endian float64 blob.
func encodePeaksFloat64(peaks []core.Peak, masses bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		value := peak.Intensity
		if masses {
			value = peak.Mass
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// DecodeFloat64s reverses the blob encoding.
func DecodeFloat64s(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob of %d bytes is not a float64 array", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out, nil
}

// Finalize records the run summary and closes the database.
func (w *Writer) Finalize(stats pipeline.Stats, description string) error {
	_, err := w.db.Exec(`
		INSERT INTO RunTable (RunId, StartDate, EndDate, Command, Description, SpectrumCount, SkippedCount, TagCount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.runID, w.started.Format(runDateFormat), time.Now().Format(runDateFormat),
		w.command, description, stats.Processed, stats.Skipped, stats.Tags)
	if err != nil {
		w.Close()
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return w.Close()
}

// Close closes the statements and the database without recording the run.
func (w *Writer) Close() error {
	for _, stmt := range []*sql.Stmt{w.spectrumStmt, w.tweakStmt, w.tagStmt, w.cutStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
