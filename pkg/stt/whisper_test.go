package stt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" Hello purple. ", "Hello purple."},
		{"[BLANK_AUDIO]", ""},
		{"(music) open notepad [BLANK_AUDIO]", "open notepad"},
		{"*coughs*  what is   the time", "what is the time"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), tt.in)
	}
}

func TestEmptyModelPath(t *testing.T) {
	_, err := NewTranscriber("", Options{})
	assert.Error(t, err)
}

func TestNilModel(t *testing.T) {
	_, err := (&Transcriber{}).Transcribe(context.Background(), []float32{0}, "en")
	assert.Error(t, err)
	assert.NoError(t, (&Transcriber{}).Close())
}
