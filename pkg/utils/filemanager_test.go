package utils

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("<a/>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDiscoverInputFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.xml"))
	touch(t, filepath.Join(dir, "a.xml"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "2024", "c.xml"))

	fm := NewFileManager(dir, "", "")

	flat, err := fm.DiscoverInputFiles("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flat) != 2 || filepath.Base(flat[0]) != "a.xml" || filepath.Base(flat[1]) != "b.xml" {
		t.Fatalf("expected sorted a.xml, b.xml, got %v", flat)
	}

	all, err := fm.DiscoverInputFiles("*.xml", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 files recursively, got %v", all)
	}

	if _, err := fm.DiscoverInputFiles("[", false); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
	if _, err := NewFileManager(filepath.Join(dir, "missing"), "", "").DiscoverInputFiles("", false); err == nil {
		t.Fatalf("expected error for missing input directory")
	}
}

func TestArchiveInputFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "f.xml")
	touch(t, src)

	fm := NewFileManager(filepath.Join(dir, "in"), "", filepath.Join(dir, "archive"))
	dst, err := fm.ArchiveInputFile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst != filepath.Join(dir, "archive", "f.xml") {
		t.Fatalf("unexpected archive path %q", dst)
	}
	if FileExists(src) || !FileExists(dst) {
		t.Fatalf("expected file to be moved to %s", dst)
	}

	off := NewFileManager(dir, "", "")
	if p, err := off.ArchiveInputFile(dst); err != nil || p != dst {
		t.Fatalf("expected archival disabled to be a no-op, got %q, %v", p, err)
	}
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("cfdi_{date}_{uuid}_{batch}", ".csv", map[string]string{"batch": "b7"})
	re := regexp.MustCompile(`^cfdi_\d{8}_[0-9a-f-]{36}_b7\.csv$`)
	if !re.MatchString(name) {
		t.Fatalf("unexpected name %q", name)
	}

	if got := GenerateOutputFileName("out.XLSX", ".xlsx", nil); got != "out.XLSX" {
		t.Fatalf("expected existing extension kept, got %q", got)
	}
}

func TestWriteErrorLogAndSummary(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteErrorLog(nil, dir)
	if err != nil || path != "" {
		t.Fatalf("expected no log for no entries, got %q, %v", path, err)
	}

	path, err = WriteErrorLog([]ErrorLogEntry{{
		Timestamp:    time.Now(),
		FileName:     "bad.xml",
		ErrorType:    "MissingFieldError",
		ErrorMessage: `missing required attribute "Fecha" on Comprobante`,
	}}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Ext(path) != ".csv" {
		t.Fatalf("expected a .csv error log, got %q", path)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open error log: %v", err)
	}
	records, err := csv.NewReader(f).ReadAll()
	f.Close()
	if err != nil {
		t.Fatalf("error log is not valid CSV: %v", err)
	}
	if len(records) != 2 || records[0][2] != "error_kind" || records[1][1] != "bad.xml" || records[1][2] != "MissingFieldError" {
		t.Fatalf("unexpected error log %q", records)
	}
	if records[1][3] != `missing required attribute "Fecha" on Comprobante` {
		t.Fatalf("expected message to survive quoting, got %q", records[1][3])
	}

	start := time.Now()
	path, err = WriteSummaryLog(ProcessingSummary{
		StartTime:       start,
		EndTime:         start.Add(time.Second),
		OutputFile:      "out.csv",
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		TotalRows:       3,
		ProcessedFiles:  []ProcessedFileInfo{{InputFile: "good.xml", Rows: 3, LineItems: 2}},
		FailedFilesList: []FailedFileInfo{{InputFile: "bad.xml", ErrorType: "ParseError", ErrorMessage: "boom"}},
	}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}

	var got struct {
		Duration       string `yaml:"duration"`
		TotalFiles     int    `yaml:"total_files"`
		OutputFile     string `yaml:"output_file"`
		ProcessedFiles []struct {
			InputFile string `yaml:"input_file"`
			Rows      int    `yaml:"rows"`
		} `yaml:"processed_files"`
		FailedFilesList []struct {
			ErrorKind string `yaml:"error_kind"`
		} `yaml:"failed_files_list"`
	}
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("summary is not valid YAML: %v\n%s", err, data)
	}
	if got.Duration != "1s" || got.TotalFiles != 2 || got.OutputFile != "out.csv" {
		t.Fatalf("unexpected summary:\n%s", data)
	}
	if len(got.ProcessedFiles) != 1 || got.ProcessedFiles[0].InputFile != "good.xml" || got.ProcessedFiles[0].Rows != 3 {
		t.Fatalf("unexpected processed files:\n%s", data)
	}
	if len(got.FailedFilesList) != 1 || got.FailedFilesList[0].ErrorKind != "ParseError" {
		t.Fatalf("unexpected failed files:\n%s", data)
	}
}

func TestArchiveInputFile_SameNameInSubdirectories(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	for _, sub := range []string{"a", "b"} {
		p := filepath.Join(in, sub, "inv.xml")
		touch(t, p)
		if err := os.WriteFile(p, []byte("doc-"+sub), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	fm := NewFileManager(in, "", filepath.Join(dir, "arch"))
	files, err := fm.DiscoverInputFiles("*.xml", true)
	if err != nil || len(files) != 2 {
		t.Fatalf("expected 2 discovered files, got %v, %v", files, err)
	}

	seen := map[string]bool{}
	for _, f := range files {
		dst, err := fm.ArchiveInputFile(f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[dst] {
			t.Fatalf("two inputs archived to %s", dst)
		}
		seen[dst] = true
	}

	for _, sub := range []string{"a", "b"} {
		data, err := os.ReadFile(filepath.Join(dir, "arch", sub, "inv.xml"))
		if err != nil {
			t.Fatalf("expected archived %s/inv.xml: %v", sub, err)
		}
		if string(data) != "doc-"+sub {
			t.Fatalf("expected %q, got %q", "doc-"+sub, data)
		}
	}
}

func TestArchiveInputFile_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	arch := filepath.Join(dir, "arch")
	touch(t, filepath.Join(arch, "inv.xml"))

	src := filepath.Join(dir, "elsewhere", "inv.xml")
	touch(t, src)
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	fm := NewFileManager(filepath.Join(dir, "in"), "", arch)
	dst, err := fm.ArchiveInputFile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst != filepath.Join(arch, "inv_1.xml") {
		t.Fatalf("expected suffixed archive path, got %q", dst)
	}
	if data, _ := os.ReadFile(filepath.Join(arch, "inv.xml")); string(data) != "<a/>" {
		t.Fatalf("existing archive entry was overwritten: %q", data)
	}
	if data, _ := os.ReadFile(dst); string(data) != "new" {
		t.Fatalf("unexpected archived content %q", data)
	}
}

func TestArchiveInputFile_ByDate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "f.xml")
	touch(t, src)

	fm := NewFileManager(filepath.Join(dir, "in"), "", filepath.Join(dir, "arch"))
	fm.UseTimestampSubdirs = true
	before := filepath.FromSlash(time.Now().Format("2006/01/02"))
	dst, err := fm.ArchiveInputFile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := filepath.FromSlash(time.Now().Format("2006/01/02"))
	if dst != filepath.Join(dir, "arch", before, "f.xml") && dst != filepath.Join(dir, "arch", after, "f.xml") {
		t.Fatalf("unexpected dated archive path %q", dst)
	}
}
