// Command seed creates a ready interview session from a prepared question
// file, without calling an LLM.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/live-interview/internal/questions"
	"github.com/hubenschmidt/live-interview/internal/store"
)

func main() {
	file := flag.String("file", "", "question file: JSON list of {question, ideal_answer}, or .txt with blank-line separated questions")
	role := flag.String("role", "Software Engineer", "role being interviewed for")
	difficulty := flag.String("difficulty", "mid", "seniority level")
	domain := flag.String("domain", "", "industry domain")
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.Parse()

	if *file == "" || *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "usage: seed --file ./samples/questions.json [--role ...] (DATABASE_URL required)")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	items, err := loadQuestions(*file)
	if err != nil {
		slog.Error("load questions", "file", *file, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, *databaseURL)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	id, err := seedSession(ctx, st, questions.Brief{Role: *role, Difficulty: *difficulty, Domain: *domain}, items)
	if err != nil {
		slog.Error("seed session", "error", err)
		os.Exit(1)
	}
	slog.Info("session ready", "session_id", id, "questions", len(items), "ws", "/ws/"+id)
}

type sessionWriter interface {
	CreateSession(ctx context.Context, s store.Session) error
	SaveQuestions(ctx context.Context, sessionID string, items []store.QuestionItem) error
	SetStatus(ctx context.Context, id string, status store.Status) error
}

func seedSession(ctx context.Context, st sessionWriter, b questions.Brief, items []questions.Item) (string, error) {
	id := uuid.NewString()
	if err := st.CreateSession(ctx, store.Session{
		ID:         id,
		Role:       b.Role,
		Difficulty: b.Difficulty,
		Domain:     b.Domain,
		Status:     store.StatusPreparing,
	}); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	stored := make([]store.QuestionItem, len(items))
	for i, it := range items {
		stored[i] = store.QuestionItem{Question: it.Question, IdealAnswer: it.IdealAnswer, OrderIdx: i}
	}
	if err := st.SaveQuestions(ctx, id, stored); err != nil {
		return "", fmt.Errorf("save questions: %w", err)
	}
	if err := st.SetStatus(ctx, id, store.StatusReady); err != nil {
		return "", fmt.Errorf("mark ready: %w", err)
	}
	return id, nil
}

func loadQuestions(path string) ([]questions.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []questions.Item
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		for _, q := range splitParagraphs(string(data)) {
			items = append(items, questions.Item{Question: q})
		}
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	kept := items[:0]
	for _, it := range items {
		if strings.TrimSpace(it.Question) != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("no questions in file")
	}
	return kept, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
