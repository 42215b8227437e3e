package main

import "wims_connector/wims"

// Worksheet scores come in tenths of a percent, exam scores are used as is.
const worksheetScoreFactor = 0.1

type Grade struct {
	UserID string  `json:"userId"`
	Grade  float64 `json:"grade"`
}

func worksheetGrades(records []wims.ScoreRecord) []Grade {
	return scaleScores(records, worksheetScoreFactor)
}

func examGrades(records []wims.ScoreRecord) []Grade {
	return scaleScores(records, 1)
}

func scaleScores(records []wims.ScoreRecord, factor float64) []Grade {
	grades := make([]Grade, len(records))
	for i, rec := range records {
		grades[i] = Grade{UserID: rec.UserID, Grade: rec.Score * factor}
	}
	return grades
}
