package services

import (
	"testing"

	"github.com/ochairo/binscope/internal/domain/entities"
)

func TestBinaryClassifier_Classify(t *testing.T) {
	classifier := NewBinaryClassifier()

	tests := []struct {
		name      string
		libraries []string
		want      entities.BinaryKind
	}{
		{
			name:      "nil list defaults to objective c",
			libraries: nil,
			want:      entities.BinaryKindObjectiveC,
		},
		{
			name:      "empty list defaults to objective c",
			libraries: []string{},
			want:      entities.BinaryKindObjectiveC,
		},
		{
			name: "objective c frameworks only",
			libraries: []string{
				"/System/Library/Frameworks/Foundation.framework/Foundation",
				"/usr/lib/libobjc.A.dylib",
			},
			want: entities.BinaryKindObjectiveC,
		},
		{
			name:      "swift core runtime",
			libraries: []string{"/usr/lib/swift/libswiftCore.dylib"},
			want:      entities.BinaryKindSwift,
		},
		{
			name: "swift runtime embedded in rpath path",
			libraries: []string{
				"/usr/lib/libobjc.A.dylib",
				"@rpath/libswiftCore.dylib (compatibility version 1.0.0)",
			},
			want: entities.BinaryKindSwift,
		},
		{
			name:      "other swift libraries are not enough",
			libraries: []string{"/usr/lib/swift/libswiftFoundation.dylib"},
			want:      entities.BinaryKindObjectiveC,
		},
		{
			name:      "match is case sensitive",
			libraries: []string{"/usr/lib/swift/LIBSWIFTCORE.DYLIB"},
			want:      entities.BinaryKindObjectiveC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.libraries); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
