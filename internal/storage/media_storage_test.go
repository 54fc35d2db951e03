package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMediaStorage_SaveAndOpen(t *testing.T) {
	s, err := NewMediaStorage(t.TempDir(), 1)
	assert.NoError(t, err)
	ctx := context.Background()
	jobID := uuid.New()

	relative, size, err := s.Save(ctx, jobID, "proof.jpg", strings.NewReader("jpeg-bytes"))
	assert.NoError(t, err)
	assert.Equal(t, int64(len("jpeg-bytes")), size)
	assert.True(t, strings.HasPrefix(relative, jobID.String()))
	assert.True(t, strings.HasSuffix(relative, ".jpg"))

	f, err := s.Open(ctx, relative)
	assert.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	assert.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestMediaStorage_SizeLimit(t *testing.T) {
	s, err := NewMediaStorage(t.TempDir(), 1)
	assert.NoError(t, err)

	tooBig := strings.NewReader(strings.Repeat("x", 1<<20+1))
	_, _, err = s.Save(context.Background(), uuid.New(), "huge.mp4", tooBig)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "лимит")
}

func TestMediaStorage_OpenRejectsTraversal(t *testing.T) {
	s, err := NewMediaStorage(t.TempDir(), 1)
	assert.NoError(t, err)
	ctx := context.Background()

	_, err = s.Open(ctx, "../../etc/passwd")
	assert.Error(t, err)

	_, err = s.Open(ctx, "/etc/passwd")
	assert.Error(t, err)
}

func TestMediaStorage_Delete(t *testing.T) {
	s, err := NewMediaStorage(t.TempDir(), 1)
	assert.NoError(t, err)
	ctx := context.Background()
	jobID := uuid.New()

	relative, _, err := s.Save(ctx, jobID, "proof.png", strings.NewReader("png"))
	assert.NoError(t, err)

	assert.NoError(t, s.Delete(ctx, relative))
	_, err = s.Open(ctx, relative)
	assert.Error(t, err)

	// Повторное удаление не считается ошибкой.
	assert.NoError(t, s.Delete(ctx, relative))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "proof.jpg", sanitizeFilename("proof.jpg"))
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "media", sanitizeFilename(""))
}
