package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/live-interview/internal/questions"
	"github.com/hubenschmidt/live-interview/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadQuestions(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []questions.Item
		wantErr bool
	}{
		{
			name:    "json",
			file:    "q.json",
			content: `[{"question":"What is a goroutine?","ideal_answer":"A lightweight thread."},{"question":" "}]`,
			want:    []questions.Item{{Question: "What is a goroutine?", IdealAnswer: "A lightweight thread."}},
		},
		{
			name:    "text paragraphs",
			file:    "q.txt",
			content: "Tell me about\nyour last project.\n\n\n\nHow do you test code?\n",
			want:    []questions.Item{{Question: "Tell me about your last project."}, {Question: "How do you test code?"}},
		},
		{name: "empty list", file: "q.json", content: `[]`, wantErr: true},
		{name: "bad json", file: "q.json", content: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadQuestions(writeFile(t, tt.file, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeedSession(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	items := []questions.Item{{Question: "Q1", IdealAnswer: "A1"}, {Question: "Q2"}}

	id, err := seedSession(ctx, st, questions.Brief{Role: "SRE", Difficulty: "senior"}, items)
	require.NoError(t, err)

	sess, err := st.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReady, sess.Status)

	stored, err := st.Questions(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Q2", stored[1].Question)
	assert.Equal(t, 1, stored[1].OrderIdx)
}
