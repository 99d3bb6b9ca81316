package services

import (
	"strings"

	"github.com/ochairo/binscope/internal/domain/entities"
	"github.com/ochairo/binscope/internal/domain/interfaces/services"
)

// SwiftCoreLibrary is the runtime library every Swift executable links against
const SwiftCoreLibrary = "libswiftCore.dylib"

// binaryClassifier implements BinaryClassifier with pure business logic
type binaryClassifier struct{}

// NewBinaryClassifier creates a new binary classifier
func NewBinaryClassifier() services.BinaryClassifier {
	return &binaryClassifier{}
}

// Classify returns Swift if any library links the Swift core runtime, Objective C otherwise
// Pure business logic - no I/O
func (c *binaryClassifier) Classify(libraries []string) entities.BinaryKind {
	for _, lib := range libraries {
		if strings.Contains(lib, SwiftCoreLibrary) {
			return entities.BinaryKindSwift
		}
	}
	return entities.BinaryKindObjectiveC
}
