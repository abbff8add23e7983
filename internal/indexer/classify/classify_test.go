package classify

import "testing"

func TestIsTextByExtension(t *testing.T) {
	if !IsText("main.go", []byte("package main")) {
		t.Fatal("expected .go to be text")
	}
}

func TestIsTextByBinaryExtension(t *testing.T) {
	if IsText("logo.png", []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("expected .png to be binary")
	}
}

func TestIsTextByNullByteSniff(t *testing.T) {
	content := []byte{'a', 'b', 0, 'c'}
	if IsText("unknown.xyz", content) {
		t.Fatal("expected content with a null byte to be classified as binary")
	}
}

func TestIsTextBySniffFallback(t *testing.T) {
	if !IsText("README", []byte("this is a plain text readme file")) {
		t.Fatal("expected plain text content without a null byte to classify as text")
	}
}

func TestExcluderBuiltinDirs(t *testing.T) {
	e := NewExcluder(nil)
	if !e.ExcludeDir("node_modules") {
		t.Fatal("expected node_modules to be excluded")
	}
	if e.ExcludeDir("src") {
		t.Fatal("did not expect src to be excluded")
	}
}

func TestExcluderUserPatterns(t *testing.T) {
	e := NewExcluder([]string{"*.generated.go", "testdata"})
	if !e.ExcludeFile("foo.generated.go") {
		t.Fatal("expected glob suffix exclusion to match")
	}
	if !e.ExcludeDir("testdata") {
		t.Fatal("expected exact name exclusion to match")
	}
}
