package supervisor

import (
	"testing"

	"github.com/gwlsn/pipeline/internal/config"
)

func TestDerivePathMirrorPreserve(t *testing.T) {
	profile := config.Profile{
		InputPath:       "/in",
		OutputPath:      "/out",
		OutputStructure: config.StructureMirror,
		FilenameMode:    config.FilenamePreserve,
		FilenameSuffix:  ".av1",
	}
	got := DerivePath("/in/movies/x.mkv", profile)
	want := "/out/movies/x.av1.mkv"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDerivePathFlatStructure(t *testing.T) {
	profile := config.Profile{
		InputPath:       "/in",
		OutputPath:      "/out",
		OutputStructure: config.StructureFlat,
		FilenameMode:    config.FilenamePreserve,
	}
	got := DerivePath("/in/movies/nested/x.mkv", profile)
	want := "/out/x.mkv"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDerivePathTemplateKeepsOriginalExtension(t *testing.T) {
	profile := config.Profile{
		InputPath:       "/in",
		OutputPath:      "/out",
		OutputStructure: config.StructureFlat,
		FilenameMode:    config.FilenameTemplate,
	}
	got := DerivePath("/in/x.mp4", profile)
	want := "/out/x.mp4"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDerivePathOutsideInputFallsBackToFullPath(t *testing.T) {
	profile := config.Profile{
		InputPath:       "/in",
		OutputPath:      "/out",
		OutputStructure: config.StructureMirror,
		FilenameMode:    config.FilenamePreserve,
	}
	got := DerivePath("/elsewhere/x.mkv", profile)
	if got == "" {
		t.Error("expected a non-empty fallback path")
	}
}
