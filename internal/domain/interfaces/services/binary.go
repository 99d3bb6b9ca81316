// Package services defines interfaces for domain service contracts.
package services

import (
	"context"

	"github.com/ochairo/binscope/internal/domain/entities"
)

// BinaryClassifier infers the runtime language of an executable
type BinaryClassifier interface {
	Classify(libraries []string) entities.BinaryKind
}

// RuleMatcher runs the binary rule corpus over symbols and class-dump output.
// Hits are written into findings keyed by rule id.
type RuleMatcher interface {
	Match(ctx context.Context, scanID string, findings map[string]entities.BinaryFinding, symbols []string, dump entities.ClassDump) error
}
