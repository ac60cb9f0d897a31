package notify

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChimeMissingFile(t *testing.T) {
	err := NewChime(filepath.Join(t.TempDir(), "beep.mp3")).Play()
	assert.ErrorContains(t, err, "open chime")
}
