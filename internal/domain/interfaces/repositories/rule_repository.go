// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/binscope/internal/domain/entities"
)

// RuleRepository defines the interface for accessing the binary rule corpus
type RuleRepository interface {
	// ListRules returns all rules of the corpus
	ListRules(ctx context.Context) ([]entities.BinaryRule, error)

	// GetRule retrieves a rule by id
	GetRule(ctx context.Context, id string) (entities.BinaryRule, error)
}
