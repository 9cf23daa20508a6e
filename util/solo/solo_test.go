package solo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterBasicWrite(t *testing.T) {
	tempDir := t.TempDir()

	w, err := NewWriter(tempDir, "test", 100, 10, nil)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data := []byte("Hello, World!")
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected to write %d bytes, wrote %d", len(data), n)
	}

	filePath := filepath.Join(tempDir, "test_0")
	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("expected content %q, got %q", string(data), string(content))
	}
}

func TestWriterFileRotation(t *testing.T) {
	tempDir := t.TempDir()

	maxLen := int64(20)
	w, err := NewWriter(tempDir, "test", maxLen, 10, nil)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data1 := []byte("12345678901234567890") // 20 bytes
	data2 := []byte("ABCDEFGHIJ")            // 10 bytes

	if _, err = w.Write(data1); err != nil {
		t.Fatalf("failed to write data1: %v", err)
	}
	if _, err = w.Write(data2); err != nil {
		t.Fatalf("failed to write data2: %v", err)
	}

	file0 := filepath.Join(tempDir, "test_0")
	content0, err := os.ReadFile(file0)
	if err != nil {
		t.Fatalf("failed to read test_0: %v", err)
	}
	if string(content0) != string(data1) {
		t.Errorf("expected test_0 content %q, got %q", string(data1), string(content0))
	}

	file1 := filepath.Join(tempDir, "test_1")
	content1, err := os.ReadFile(file1)
	if err != nil {
		t.Fatalf("failed to read test_1: %v", err)
	}
	if string(content1) != string(data2) {
		t.Errorf("expected test_1 content %q, got %q", string(data2), string(content1))
	}
}

func TestWriterResumesAfterExistingFiles(t *testing.T) {
	tempDir := t.TempDir()

	os.WriteFile(filepath.Join(tempDir, "test_0"), []byte("existing0"), 0644)
	os.WriteFile(filepath.Join(tempDir, "test_1"), []byte("existing1"), 0644)

	outputChan := make(chan []byte, 10)
	w, err := NewWriter(tempDir, "test", 100, 10, outputChan)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	var received []byte
	for chunk := range outputChan {
		received = append(received, chunk...)
	}

	expected := "existing0existing1"
	if string(received) != expected {
		t.Errorf("expected %q, got %q", expected, string(received))
	}

	if w.currentIndex != 2 {
		t.Errorf("expected currentIndex 2, got %d", w.currentIndex)
	}
}

func TestWriterAppendToExistingFile(t *testing.T) {
	tempDir := t.TempDir()

	existingData := []byte("existing")
	os.WriteFile(filepath.Join(tempDir, "test_0"), existingData, 0644)

	w, err := NewWriter(tempDir, "test", 100, 10, nil)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	newData := []byte(" new")
	if _, err = w.Write(newData); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	filePath := filepath.Join(tempDir, "test_0")
	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	expected := "existing new"
	if string(content) != expected {
		t.Errorf("expected %q, got %q", expected, string(content))
	}
}

func TestFindSequenceFiles(t *testing.T) {
	tempDir := t.TempDir()

	os.WriteFile(filepath.Join(tempDir, "test_2"), []byte("2"), 0644)
	os.WriteFile(filepath.Join(tempDir, "test_0"), []byte("0"), 0644)
	os.WriteFile(filepath.Join(tempDir, "test_1"), []byte("1"), 0644)
	os.WriteFile(filepath.Join(tempDir, "other_0"), []byte("other"), 0644)

	files, err := findSequenceFiles(tempDir, "test")
	if err != nil {
		t.Fatalf("failed to find files: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}

	expected := []string{"test_0", "test_1", "test_2"}
	for i, file := range files {
		base := filepath.Base(file)
		if base != expected[i] {
			t.Errorf("expected file %s at position %d, got %s", expected[i], i, base)
		}
	}
}

func TestReadFileInChunks(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "test.txt")

	data := []byte("1234567890ABCDEFGHIJ")
	os.WriteFile(filePath, data, 0644)

	outputChan := make(chan []byte, 10)
	go func() {
		defer close(outputChan)
		readFileInChunks(filePath, 5, outputChan)
	}()

	var received []byte
	chunkCount := 0
	for chunk := range outputChan {
		received = append(received, chunk...)
		chunkCount++
	}

	if string(received) != string(data) {
		t.Errorf("expected %q, got %q", string(data), string(received))
	}
	if chunkCount != 4 {
		t.Errorf("expected 4 chunks, got %d", chunkCount)
	}
}

func TestReaderReadsExistingFiles(t *testing.T) {
	tempDir := t.TempDir()

	os.WriteFile(filepath.Join(tempDir, "test_0"), []byte("hello"), 0644)
	os.WriteFile(filepath.Join(tempDir, "test_1"), []byte("world"), 0644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := NewReader(tempDir, "test", 4, 20*time.Millisecond)
	out := make(chan []byte, 10)
	done := make(chan error, 1)
	go func() { done <- reader.Read(ctx, out) }()

	var received []byte
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				break loop
			}
			received = append(received, chunk...)
			if string(received) == "helloworld" {
				cancel()
			}
		case <-timeout:
			t.Fatal("timed out waiting for reader to drain existing files")
		}
	}
	<-done

	if string(received) != "helloworld" {
		t.Errorf("expected %q, got %q", "helloworld", string(received))
	}
}

func TestReaderFollowsGrowthAndNewFiles(t *testing.T) {
	tempDir := t.TempDir()

	writer, err := NewWriter(tempDir, "tail", 1<<20, 16, nil)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := NewReader(tempDir, "tail", 16, 20*time.Millisecond)
	out := make(chan []byte, 10)
	go reader.Read(ctx, out)

	if _, err := writer.Write([]byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var received []byte
	timeout := time.After(2 * time.Second)
	for string(received) != "first" {
		select {
		case chunk := <-out:
			received = append(received, chunk...)
		case <-timeout:
			t.Fatalf("timed out waiting for tailed data, got %q so far", string(received))
		}
	}
}

func BenchmarkWriter(b *testing.B) {
	tempDir := b.TempDir()
	w, err := NewWriter(tempDir, "bench", 1024*1024, 1024, nil)
	if err != nil {
		b.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 256)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Write(data)
	}
}
