package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := NewValidator(0)
	require.Equal(t, DefaultMaxFileSize, v.MaxSize)
	require.EqualValues(t, 52_428_800, DefaultMaxFileSize)

	tests := []struct {
		name     string
		file     StagedFile
		expected Kind
		wantErr  error
	}{
		{"video ok", StagedFile{Path: "a.mp4", Size: 10, DetectedKind: KindVideo, MIME: "video/mp4"}, KindVideo, nil},
		{"image ok", StagedFile{Path: "a.jpg", Size: 10, DetectedKind: KindImage, MIME: "image/jpeg"}, KindImage, nil},
		{"unsniffable content trusts extension", StagedFile{Path: "a.mov", Size: 10, DetectedKind: KindVideo, MIME: "application/octet-stream"}, KindVideo, nil},
		{"video item with image file", StagedFile{Path: "a.jpg", Size: 10, DetectedKind: KindImage, MIME: "image/jpeg"}, KindVideo, ErrKindMismatch},
		{"image item with video file", StagedFile{Path: "a.mp4", Size: 10, DetectedKind: KindVideo, MIME: "video/mp4"}, KindImage, ErrKindMismatch},
		{"extension disagrees with content", StagedFile{Path: "a.mp4", Size: 10, DetectedKind: KindVideo, MIME: "image/png"}, KindVideo, ErrKindMismatch},
		{"exactly the limit", StagedFile{Path: "a.mp4", Size: DefaultMaxFileSize, DetectedKind: KindVideo, MIME: "video/mp4"}, KindVideo, nil},
		{"one byte over", StagedFile{Path: "a.mp4", Size: DefaultMaxFileSize + 1, DetectedKind: KindVideo, MIME: "video/mp4"}, KindVideo, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := tt.file
			got, err := v.Validate(&file, tt.expected)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Same(t, &file, got)
				assert.Equal(t, tt.file, *got)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	v := NewValidator(100)
	_, err := v.Validate(&StagedFile{Path: "big.mp4", Size: 101, DetectedKind: KindVideo}, KindVideo)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.EqualValues(t, 101, verr.Size)
	assert.EqualValues(t, 100, verr.Limit)
	assert.Equal(t, OutcomeTooLarge, OutcomeOf(err))

	_, err = v.Validate(&StagedFile{Path: "pic.jpg", DetectedKind: KindImage}, KindVideo)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindVideo, verr.Expected)
	assert.Equal(t, KindImage, verr.Actual)
	assert.Equal(t, OutcomeKindMismatch, OutcomeOf(err))
}
