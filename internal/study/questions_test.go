package study

import (
	"context"
	"errors"
	"testing"

	"github.com/berea-study/berea/internal/providers"
)

func TestGenerateQuestionsJSONArray(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Ruth?", "What is the Sabbath?", "Where was Nineveh?"]`)

	questions, source, _, err := GenerateQuestions(context.Background(), mock, 3)
	if err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("got %d questions, want 3", len(questions))
	}
	if source != providers.SourceDirect {
		t.Errorf("source = %q, want %q", source, providers.SourceDirect)
	}
	if questions[0] != "Who was Ruth?" {
		t.Errorf("questions[0] = %q", questions[0])
	}
}

func TestGenerateQuestionsFencedArray(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue("```json\n[\"Who was Ruth?\", \"What is the Sabbath?\"]\n```")

	questions, source, _, err := GenerateQuestions(context.Background(), mock, 2)
	if err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if source != providers.SourceExtracted {
		t.Errorf("source = %q, want %q", source, providers.SourceExtracted)
	}
}

func TestGenerateQuestionsLineFallback(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue("1. Who was Ruth?\n2) What is the Sabbath?\n- Where was Nineveh?\n\n")

	questions, source, _, err := GenerateQuestions(context.Background(), mock, 3)
	if err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	if source != providers.SourceFallback {
		t.Errorf("source = %q, want %q", source, providers.SourceFallback)
	}
	want := []string{"Who was Ruth?", "What is the Sabbath?", "Where was Nineveh?"}
	for i, w := range want {
		if questions[i] != w {
			t.Errorf("questions[%d] = %q, want %q", i, questions[i], w)
		}
	}
}

func TestGenerateQuestionsTruncatesAndDedupes(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Ruth?", "who was ruth?", "What is the Sabbath?", "Where was Nineveh?"]`)

	questions, _, _, err := GenerateQuestions(context.Background(), mock, 2)
	if err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[1] != "What is the Sabbath?" {
		t.Errorf("duplicate not removed before truncation: %v", questions)
	}
}

func TestGenerateQuestionsEmptyReply(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue("")

	if _, _, _, err := GenerateQuestions(context.Background(), mock, 3); err == nil {
		t.Fatal("expected error for empty reply")
	}
}

func TestGenerateQuestionsProviderError(t *testing.T) {
	mock := providers.NewMockClient()
	mock.EnqueueError(errors.New("boom"))

	if _, _, _, err := GenerateQuestions(context.Background(), mock, 3); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestGenerateQuestionsHighTemperature(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Ruth?"]`)

	if _, _, _, err := GenerateQuestions(context.Background(), mock, 1); err != nil {
		t.Fatalf("GenerateQuestions failed: %v", err)
	}
	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests", len(reqs))
	}
	if reqs[0].Temperature != questionTemperature {
		t.Errorf("temperature = %v, want %v", reqs[0].Temperature, questionTemperature)
	}
}
