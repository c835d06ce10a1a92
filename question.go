package quizstore

// Difficulty is the closed set of question difficulties.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Kanda is the book of the epic a question belongs to.
type Kanda string

const (
	KandaBala      Kanda = "Bala Kanda"
	KandaAyodhya   Kanda = "Ayodhya Kanda"
	KandaAranya    Kanda = "Aranya Kanda"
	KandaKishkinda Kanda = "Kishkinda Kanda"
	KandaSundara   Kanda = "Sundara Kanda"
	KandaLanka     Kanda = "Lanka Kanda"
	KandaUttara    Kanda = "Uttara Kanda"
)

// Kandas lists every kanda in book order.
var Kandas = []Kanda{KandaBala, KandaAyodhya, KandaAranya, KandaKishkinda, KandaSundara, KandaLanka, KandaUttara}

// Valid reports whether k is one of the seven kandas.
func (k Kanda) Valid() bool {
	for _, known := range Kandas {
		if k == known {
			return true
		}
	}
	return false
}

// Question is a quiz question and the answers it owns.
//
// Information and the translated fields are filled in by the enrichment
// worker and stay nil until it has processed the question.
type Question struct {
	ID             int64      `json:"id"`
	Text           string     `json:"question" validate:"required"`
	Kanda          Kanda      `json:"kanda,omitempty" validate:"omitempty,kanda"`
	Tags           []string   `json:"tags" validate:"dive,required,max=20"`
	Difficulty     Difficulty `json:"difficulty,omitempty" validate:"omitempty,difficulty"`
	Information    *string    `json:"information,omitempty"`
	QuestionHindi  *string    `json:"question_hindi,omitempty"`
	QuestionTelugu *string    `json:"question_telugu,omitempty"`
	Answers        []Answer   `json:"answers" validate:"dive"`
}

// Answer is one answer option, owned by exactly one question.
type Answer struct {
	ID           int64   `json:"id,omitempty"`
	QuestionID   int64   `json:"question_id,omitempty"`
	Text         string  `json:"answer" validate:"required"`
	IsCorrect    bool    `json:"is_correct"`
	AnswerHindi  *string `json:"answer_hindi,omitempty"`
	AnswerTelugu *string `json:"answer_telugu,omitempty"`
}

// CorrectAnswers returns the answers flagged as correct, in order.
func (q *Question) CorrectAnswers() []Answer {
	var correct []Answer
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct = append(correct, a)
		}
	}
	return correct
}
