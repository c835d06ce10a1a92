package quiz

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/creastat/quizstore"
)

var uploadColumns = []string{"question", "answers", "difficulty", "kanda", "tags"}

// ParseUpload reads questions from a CSV upload. The header row must name the
// question and answers columns; difficulty, kanda and tags are optional.
//
// Answers are one per line within the cell, the correct ones marked with a
// trailing "*". Tags are comma separated.
func ParseUpload(r io.Reader) ([]quizstore.Question, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &quizstore.ValidationError{Field: "file", Reason: "is empty"}
	}
	if err != nil {
		return nil, &quizstore.ValidationError{Field: "file", Reason: err.Error()}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range uploadColumns[:2] {
		if _, ok := index[required]; !ok {
			return nil, &quizstore.ValidationError{Field: "file", Reason: fmt.Sprintf("missing %s column", required)}
		}
	}

	cell := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var questions []quizstore.Question
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &quizstore.ValidationError{Field: fmt.Sprintf("row %d", row), Reason: err.Error()}
		}

		q := quizstore.Question{
			Text:       cell(record, "question"),
			Difficulty: quizstore.Difficulty(strings.ToLower(cell(record, "difficulty"))),
			Kanda:      quizstore.Kanda(cell(record, "kanda")),
			Tags:       splitTags(cell(record, "tags")),
			Answers:    parseAnswers(cell(record, "answers")),
		}
		if q.Text == "" {
			return nil, &quizstore.ValidationError{Field: fmt.Sprintf("row %d: question", row), Reason: "is required"}
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, &quizstore.ValidationError{Field: "file", Reason: "contains no questions"}
	}
	return questions, nil
}

func parseAnswers(cell string) []quizstore.Answer {
	answers := []quizstore.Answer{}
	for _, line := range strings.Split(cell, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		correct := strings.HasSuffix(text, "*")
		if correct {
			text = strings.TrimSpace(strings.TrimSuffix(text, "*"))
		}
		answers = append(answers, quizstore.Answer{Text: text, IsCorrect: correct})
	}
	return answers
}

func splitTags(cell string) []string {
	tags := []string{}
	for _, tag := range strings.Split(cell, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
