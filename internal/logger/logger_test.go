package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"", "dev", "debug", "prod", "production"} {
		log, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		if log.SugaredLogger == nil {
			t.Fatalf("New(%q): nil sugared logger", mode)
		}
	}

	log, _ := New("debug")
	if !log.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug mode should enable debug level")
	}
	log, _ = New("prod")
	if log.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("prod mode should not enable debug level")
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.With("module", "ai-sdk").Warn("lesson missing", "lesson", "intro")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["module"] != "ai-sdk" || fields["lesson"] != "intro" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("level = %v", entries[0].Level)
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Info("ignored", "k", "v")
	log.Sync()
}
