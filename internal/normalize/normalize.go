// Package normalize merges an entity's ordered source files into one cleaned,
// newline-terminated line stream. It is the first pipeline stage: everything
// downstream (the typed reader, the Parquet writer) assumes its output.
//
// Per file, in order: decode the source charset to UTF-8 when configured,
// strip the MS-DOS end-of-text sentinel (Ctrl+Z) left by old tooling, drop
// blank lines, optionally drop the first physical line (header), optionally
// drop rows not marked complete, optionally prepend the file's year tag as a
// new leading field, repair or drop short rows against the declared schema
// width, and finally suppress duplicates when the entity enables it.
//
// A single malformed record never aborts the pass; every drop, repair, and
// suppressed duplicate is reported with its source file so the pipeline's
// behavior stays auditable. High-volume filter mismatches are aggregated
// (first few examples plus a count) instead of logged line by line.
package normalize

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// dosEOF is the MS-DOS end-of-text character (Ctrl+Z) that terminates some
// historical files and must not reach the output.
const dosEOF = '\x1a'

// filterExamples caps how many filtered-row examples are logged per file.
const filterExamples = 3

// Rules configures one entity's normalization pass. The zero value passes
// lines through with only sentinel stripping and blank-line removal.
type Rules struct {
	// Dedupe suppresses lines textually identical to any previously emitted
	// line of this pass. Entities whose domain legitimately repeats rows
	// across source files (multi-source game logs) leave this off.
	Dedupe bool

	// StripHeader drops the first physical line of every file.
	StripHeader bool

	// PrependTag prepends each file's derived year tag as a new leading field.
	PrependTag bool

	// CompleteMarker, when non-zero, keeps only rows whose final field equals
	// this character (quotes stripped). Zero disables the filter.
	CompleteMarker byte

	// Width is the declared schema field count. When > 0, a row exactly one
	// field short is repaired with one empty trailing field; a row shorter
	// than that is dropped. Zero disables repair.
	Width int

	// SourceEncoding names the source charset ("windows-1252", "latin-1").
	// Empty means the input is already UTF-8.
	SourceEncoding string
}

// Stats summarizes one entity's normalization pass.
type Stats struct {
	Files      int
	Lines      int // lines emitted
	Filtered   int // rows dropped by the completeness filter
	Repaired   int // short rows accepted after appending an empty field
	Dropped    int // rows too short to repair
	Duplicates int // lines suppressed by dedup
}

// Concat processes files in the given (already sorted) order and writes the
// normalized line stream to w. It returns per-pass stats; the returned error
// covers I/O and configuration failures only, never individual bad records.
func Concat(entity string, files []string, rules Rules, w io.Writer) (Stats, error) {
	var stats Stats

	var dedup *dedupSet
	if rules.Dedupe {
		dedup = newDedupSet()
	}

	bw := bufio.NewWriter(w)
	for _, path := range files {
		if err := concatFile(entity, path, rules, dedup, bw, &stats); err != nil {
			return stats, err
		}
		stats.Files++
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("entity %s: flush output: %w", entity, err)
	}
	return stats, nil
}

func concatFile(entity, path string, rules Rules, dedup *dedupSet, w *bufio.Writer, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("entity %s: open %s: %w", entity, path, err)
	}
	defer f.Close()

	r, err := decodeReader(f, rules.SourceEncoding)
	if err != nil {
		return fmt.Errorf("entity %s: %s: %w", entity, path, err)
	}

	tag := yearTag(path)
	filtered := 0
	firstLine := true
	openSpan := false // inside a quoted field spanning physical lines

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.Trim(sc.Text(), string(dosEOF))
		isFirst := firstLine
		firstLine = false

		if openSpan {
			// Continuation of a quoted span: the line is the middle of a
			// logical record, so no row rule can apply. Emit verbatim.
			if _, err := w.WriteString(line); err != nil {
				return fmt.Errorf("entity %s: write: %w", entity, err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("entity %s: write: %w", entity, err)
			}
			if oddQuotes(line) {
				openSpan = false
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		if isFirst && rules.StripHeader {
			continue
		}
		if oddQuotes(line) {
			// Opening fragment of a quoted span. The final field is not
			// visible yet, so the filter, repair, and dedup rules are
			// skipped; only the tag prepend still applies.
			if rules.PrependTag {
				line = tag + "," + line
			}
			if _, err := w.WriteString(line); err != nil {
				return fmt.Errorf("entity %s: write: %w", entity, err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("entity %s: write: %w", entity, err)
			}
			stats.Lines++
			openSpan = true
			continue
		}
		if rules.CompleteMarker != 0 && !isComplete(line, rules.CompleteMarker) {
			if filtered < filterExamples {
				log.Printf("filtered row in %s: %s", path, line)
			}
			filtered++
			continue
		}
		if rules.PrependTag {
			line = tag + "," + line
		}
		if rules.Width > 0 {
			switch n := fieldCount(line); {
			case n == rules.Width-1:
				// One field short: accept with an empty trailing field.
				line += ","
				log.Printf("repaired short row in %s: %s", path, line)
				stats.Repaired++
			case n >= 0 && n < rules.Width-1:
				log.Printf("dropped short row in %s (%d of %d fields): %s", path, n, rules.Width, line)
				stats.Dropped++
				continue
			}
			// Width or wider, or an open quoted span continuing on the next
			// physical line: pass through unchanged. The typed reader treats
			// quoted spans as atomic.
		}
		if dedup != nil && dedup.observe(line) {
			log.Printf("duplicate row in %s: %s", path, line)
			stats.Duplicates++
			continue
		}
		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("entity %s: write: %w", entity, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("entity %s: write: %w", entity, err)
		}
		stats.Lines++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("entity %s: read %s: %w", entity, path, err)
	}
	if filtered > filterExamples {
		log.Printf("filtered %d rows in %s (%d shown)", filtered, path, filterExamples)
	}
	stats.Filtered += filtered
	return nil
}

// decodeReader wraps r with a charset decoder when the source is not UTF-8.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch encoding {
	case "":
		return r, nil
	case "windows-1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	}
	return nil, fmt.Errorf("unsupported source encoding %q", encoding)
}

// yearTag derives a file's tag from the fixed-length suffix of its stem:
// "rosters/NYA1901.ROS" -> "1901". Stems shorter than four runes tag as-is.
func yearTag(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if len(stem) > 4 {
		return stem[len(stem)-4:]
	}
	return stem
}

// isComplete reports whether the row's final field, with surrounding quotes
// stripped, equals the marker character. Observed revisions of the upstream
// filter disagree on malformed input (exact trailing position vs. marker
// anywhere in the final field); this form agrees with both on well-formed
// rows and is total on malformed ones.
func isComplete(line string, marker byte) bool {
	last := line
	if i := strings.LastIndexByte(line, ','); i >= 0 {
		last = line[i+1:]
	}
	last = strings.Trim(last, `"`)
	return len(last) == 1 && last[0] == marker
}

// fieldCount returns the CSV field count of a single physical line, or -1
// when the line is not a complete CSV record.
func fieldCount(line string) int {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rec, err := cr.Read()
	if err != nil {
		return -1
	}
	return len(rec)
}

// oddQuotes reports whether line contains an odd number of quote characters,
// meaning it opens or closes a quoted span. CSV escapes quotes by doubling
// them, which keeps the parity of completed lines even.
func oddQuotes(line string) bool {
	return strings.Count(line, `"`)%2 == 1
}
