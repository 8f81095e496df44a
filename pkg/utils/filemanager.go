// =============================================================================
// CFDI to CSV Converter - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the converter, including:
//   - Input document discovery (glob, optionally recursive)
//   - Input archival after a successful batch
//   - Output file naming
//   - Error log and processing summary files
//
// ARCHIVAL STRATEGY:
//   - Input documents are moved to the archive directory only when the whole
//     batch succeeded, so a rerun sees exactly the documents that need work
//   - Failed documents remain in their original location
//   - The error log (CSV) and summary (YAML) are created in the output
//     directory
//
// =============================================================================

package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the converter.
type FileManager struct {
	// InputDir is the directory scanned for documents.
	InputDir string

	// OutputDir is the directory where output files are placed.
	OutputDir string

	// ArchiveDir is the directory for archived input documents.
	// Empty disables archival.
	ArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2024/01/15/factura.xml (config key archive_by_date)
	UseTimestampSubdirs bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, archiveDir string) *FileManager {
	return &FileManager{
		InputDir:   inputDir,
		OutputDir:  outputDir,
		ArchiveDir: archiveDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories if they don't
// exist. The input directory is never created.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.ArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles scans the input directory for files matching pattern.
//
// PARAMETERS:
//   - pattern: A glob matched against file names (e.g., "*.xml").
//              If empty, defaults to "*.xml".
//   - recursive: Also scan subdirectories.
//
// RETURNS:
//   - The matching file paths in lexical order.
//   - An error if the directory cannot be read or the pattern is invalid.
func (fm *FileManager) DiscoverInputFiles(pattern string, recursive bool) ([]string, error) {
	if pattern == "" {
		pattern = "*.xml"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid input pattern %q: %w", pattern, err)
	}

	if _, err := os.Stat(fm.InputDir); err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	err := filepath.WalkDir(fm.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != fm.InputDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input document to the archive directory.
//
// Documents under InputDir keep their path relative to it, so same-named
// documents from different subdirectories do not collide. An existing file
// at the target is never overwritten: a numeric suffix is added instead
// (factura_1.xml, factura_2.xml, ...).
//
// PARAMETERS:
//   - filePath: The path to the file to archive.
//
// RETURNS:
//   - The path to the archived file (filePath itself when archival is off).
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if fm.ArchiveDir == "" {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	archivePath, err := freePath(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to choose archive path: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func (fm *FileManager) getArchivePath(filePath string) string {
	name := fm.relativeToInput(filePath)

	if fm.UseTimestampSubdirs {
		day := filepath.FromSlash(time.Now().Format("2006/01/02"))
		return filepath.Join(fm.ArchiveDir, day, name)
	}

	return filepath.Join(fm.ArchiveDir, name)
}

// relativeToInput returns filePath relative to InputDir, or its base name
// when it lies outside InputDir.
func (fm *FileManager) relativeToInput(filePath string) string {
	base := filepath.Base(filePath)
	if fm.InputDir == "" {
		return base
	}
	dir, err1 := filepath.Abs(fm.InputDir)
	file, err2 := filepath.Abs(filePath)
	if err1 != nil || err2 != nil {
		return base
	}
	rel, err := filepath.Rel(dir, file)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return base
	}
	return rel
}

// freePath returns path, or path with the first free numeric suffix when
// something already exists there.
func freePath(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 1; ; i++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//   - ext: The extension to ensure, e.g. ".csv".
//   - params: Extra placeholder values, keyed without braces.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//   format: "cfdi_{timestamp}", ext: ".csv"
//   output: "cfdi_20240115_143022.csv"
func GenerateOutputFileName(format, ext string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}

	return result
}

// =============================================================================
// REPORTS
// =============================================================================
// Both reports are meant to be read by tools as much as by people: the error
// log is CSV (one failed document per row) and the summary is YAML.

// ErrorLogEntry represents a single failed document.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string
	ErrorMessage string
}

var errorLogHeader = []string{"timestamp", "file", "error_kind", "message"}

// WriteErrorLog writes error_log_<timestamp>.csv to outputDir.
//
// RETURNS:
//   - The path to the error log ("" when entries is empty, nothing is
//     written).
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, reportName("error_log", ".csv"))
	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Write(errorLogHeader)
	for _, e := range entries {
		w.Write([]string{
			e.Timestamp.Format(time.RFC3339),
			e.FileName,
			e.ErrorType,
			e.ErrorMessage,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write error log: %w", err)
	}
	return logPath, nil
}

// ProcessingSummary describes one run.
type ProcessingSummary struct {
	StartTime       time.Time           `yaml:"start_time"`
	EndTime         time.Time           `yaml:"end_time"`
	OutputFile      string              `yaml:"output_file,omitempty"`
	TotalFiles      int                 `yaml:"total_files"`
	SuccessfulFiles int                 `yaml:"successful_files"`
	FailedFiles     int                 `yaml:"failed_files"`
	SkippedFiles    int                 `yaml:"skipped_files"`
	TotalRows       int                 `yaml:"total_rows"`
	TotalLineItems  int                 `yaml:"total_line_items"`
	ProcessedFiles  []ProcessedFileInfo `yaml:"processed_files,omitempty"`
	FailedFilesList []FailedFileInfo    `yaml:"failed_files_list,omitempty"`
}

// ProcessedFileInfo describes a converted document.
type ProcessedFileInfo struct {
	InputFile   string        `yaml:"input_file"`
	ArchivePath string        `yaml:"archive_path,omitempty"`
	Rows        int           `yaml:"rows"`
	LineItems   int           `yaml:"line_items"`
	ProcessTime time.Duration `yaml:"process_time"`
}

// FailedFileInfo describes a failed or skipped document.
type FailedFileInfo struct {
	InputFile    string `yaml:"input_file"`
	ErrorType    string `yaml:"error_kind"`
	ErrorMessage string `yaml:"message"`
}

// WriteSummaryLog writes processing_summary_<timestamp>.yaml to outputDir.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	data, err := yaml.Marshal(struct {
		Duration          string `yaml:"duration"`
		ProcessingSummary `yaml:",inline"`
	}{
		Duration:          summary.EndTime.Sub(summary.StartTime).String(),
		ProcessingSummary: summary,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	summaryPath := filepath.Join(outputDir, reportName("processing_summary", ".yaml"))
	if err := os.WriteFile(summaryPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return summaryPath, nil
}

func reportName(prefix, ext string) string {
	return prefix + "_" + time.Now().Format("20060102_150405") + ext
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
