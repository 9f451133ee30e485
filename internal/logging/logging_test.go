package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewSetsLevelAndFormat(t *testing.T) {
	log := New(Config{Level: "debug", Format: "json"})
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewFallsBackOnUnrecognizedLevel(t *testing.T) {
	log := New(Config{Level: "not-a-level"})
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %s", log.GetLevel())
	}
}

func TestWithFieldReturnsChildEntry(t *testing.T) {
	log := New(Config{})
	entry := log.WithField("session_id", 42)
	if entry.Data["session_id"] != 42 {
		t.Fatalf("expected field to carry through, got %#v", entry.Data)
	}
}
