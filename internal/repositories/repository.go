package repositories

import (
	"crewdispatch/internal/database"
)

type Repository struct {
	User       UserRepository
	Team       TeamRepository
	Job        JobRepository
	Quote      QuoteRepository
	Survey     SurveyRepository
	AccessCode AccessCodeRepository
}

func New(db database.DB) Repository {
	return Repository{
		User:       NewUserRepository(db),
		Team:       NewTeamRepository(db),
		Job:        NewJobRepository(db),
		Quote:      NewQuoteRepository(db),
		Survey:     NewSurveyRepository(db),
		AccessCode: NewAccessCodeRepository(db),
	}
}
