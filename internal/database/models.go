package database

// Question is one row of the screening question bank as listed for the
// age scan: its storage position, the raw age-range text, and the question
// shown to the parent.
type Question struct {
	Position int    `db:"position"`
	AgeRange string `db:"age_range"`
	Text     string `db:"question"`
}

// QuestionDetail carries the companion columns of a question row that are
// fetched lazily, one row at a time, while a screening run is in progress.
type QuestionDetail struct {
	Position  int    `db:"position"`
	Hint      string `db:"hint"`
	Criterion string `db:"pass_criteria"`
}
