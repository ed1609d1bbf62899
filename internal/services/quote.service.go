package services

import (
	"context"
	"time"

	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuoteService handles bidding on quote-type jobs and the supervisor's pick
// of the winning bid. A subcontractor holds at most one active quote per
// job; the winning accept moves the job to ACCEPTED and binds the winner in
// the same transaction as the quote flag, so a crash can never leave a
// half-arbitrated job behind.
type QuoteService struct {
	quoteRepo   repositories.QuoteRepository
	jobRepo     repositories.JobRepository
	userRepo    repositories.UserRepository
	transaction *TransactionService
	log         logger.Logger
}

func NewQuoteService(
	repos repositories.Repository,
	transaction *TransactionService,
) *QuoteService {
	return &QuoteService{
		quoteRepo:   repos.Quote,
		jobRepo:     repos.Job,
		userRepo:    repos.User,
		transaction: transaction,
		log:         logger.New("QuoteService"),
	}
}

type QuoteAcceptResult struct {
	Job   *models.Job
	Quote *models.Quote
	// WinnerChatID and LoserChatIDs let the caller notify bidders; only
	// active losing bids are listed.
	WinnerChatID int64
	LoserChatIDs []int64
}

// Submit records a bid on an open quote-type job. A second active bid by the
// same subcontractor is rejected at write time by the bidder uniqueness
// index, so concurrent duplicate submissions cannot both land.
func (s *QuoteService) Submit(
	ctx context.Context,
	jobID uuid.UUID,
	subcontractorChatID int64,
	amount string,
	notes *string,
) (*models.Quote, error) {
	log := s.log.TraceFromContext(ctx).Function("Submit")

	sub, err := s.userRepo.GetByChatID(ctx, subcontractorChatID)
	if err != nil {
		return nil, err
	}
	if sub.Role != models.RoleSubcontractor {
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"only subcontractors may submit quotes")
	}

	parsed, err := parseAmount(amount)
	if err != nil {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"quote amount is not a valid positive number")
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.AcceptsQuotes() {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job is not open for quotes", "jobID", jobID, "status", job.Status)
	}

	quote := &models.Quote{
		JobID:           job.ID,
		SubcontractorID: sub.ID,
		Amount:          parsed.StringFixed(2),
		Notes:           notes,
		SubmittedAt:     time.Now().UTC(),
	}

	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		return nil, err
	}

	log.Info("Quote submitted", "jobID", job.ID, "quoteID", quote.ID, "amount", quote.Amount)
	return quote, nil
}

// Accept picks the winning quote. Flagging the quote, binding the winner and
// moving the job to ACCEPTED happen in one transaction; per-status guards on
// both writes make concurrent accepts of sibling quotes resolve to a single
// winner.
func (s *QuoteService) Accept(
	ctx context.Context,
	quoteID uuid.UUID,
	supervisorChatID int64,
) (*QuoteAcceptResult, error) {
	log := s.log.TraceFromContext(ctx).Function("Accept")

	supervisor, err := s.userRepo.GetByChatID(ctx, supervisorChatID)
	if err != nil {
		return nil, err
	}
	if supervisor.Role != models.RoleSupervisor && supervisor.Role != models.RoleAdmin {
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"only supervisors may accept quotes")
	}

	quote, err := s.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, quote.JobID)
	if err != nil {
		return nil, err
	}
	if job.SupervisorID != supervisor.ID && supervisor.Role != models.RoleAdmin {
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"job belongs to another supervisor", "jobID", job.ID)
	}
	if !quote.IsActive() {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"quote has been withdrawn or already decided", "quoteID", quoteID)
	}

	err = s.transaction.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := s.quoteRepo.MarkAccepted(ctx, tx, quote.ID); err != nil {
			return err
		}

		applied, err := s.jobRepo.Transition(ctx, tx, job.ID, models.JobStatusSent, map[string]any{
			"status":            models.JobStatusAccepted,
			"subcontractor_id":  quote.SubcontractorID,
			"accepted_quote_id": quote.ID,
			"accepted_at":       time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !applied {
			return log.ErrorWithType(models.ErrInvalidState,
				"job is no longer open for quote acceptance", "jobID", job.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	winner, err := s.userRepo.GetByID(ctx, quote.SubcontractorID)
	if err != nil {
		return nil, err
	}

	// Losing bidders are informed but their quotes stay on record.
	loserChatIDs := []int64{}
	siblings, err := s.quoteRepo.ListByJob(ctx, job.ID)
	if err != nil {
		log.Warn("failed to list sibling quotes", "jobID", job.ID, "error", err)
	} else {
		for _, sibling := range siblings {
			if sibling.ID == quote.ID || !sibling.IsActive() {
				continue
			}
			if bidder, err := s.userRepo.GetByID(ctx, sibling.SubcontractorID); err == nil {
				loserChatIDs = append(loserChatIDs, bidder.ChatID)
			}
		}
	}

	job, err = s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	quote, err = s.quoteRepo.GetByID(ctx, quote.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Quote accepted", "jobID", job.ID, "quoteID", quote.ID, "winnerID", winner.ID)
	return &QuoteAcceptResult{
		Job:          job,
		Quote:        quote,
		WinnerChatID: winner.ChatID,
		LoserChatIDs: loserChatIDs,
	}, nil
}

// Decline marks the bid declined, freeing the bidder to submit a revised
// quote. The job itself stays SENT.
func (s *QuoteService) Decline(
	ctx context.Context,
	quoteID uuid.UUID,
	supervisorChatID int64,
	reason *string,
) (*models.Quote, error) {
	log := s.log.TraceFromContext(ctx).Function("Decline")

	supervisor, err := s.userRepo.GetByChatID(ctx, supervisorChatID)
	if err != nil {
		return nil, err
	}

	quote, err := s.quoteRepo.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, quote.JobID)
	if err != nil {
		return nil, err
	}
	if job.SupervisorID != supervisor.ID && supervisor.Role != models.RoleAdmin {
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"job belongs to another supervisor", "jobID", job.ID)
	}

	declineReason := ""
	if reason != nil {
		declineReason = *reason
	}

	applied, err := s.quoteRepo.MarkDeclined(ctx, quote.ID, declineReason)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"quote is no longer active", "quoteID", quoteID)
	}

	log.Info("Quote declined", "quoteID", quote.ID, "jobID", job.ID)
	return s.quoteRepo.GetByID(ctx, quote.ID)
}

// ListForJob returns a job's quotes in submission order for the owning
// supervisor to review.
func (s *QuoteService) ListForJob(
	ctx context.Context,
	jobID uuid.UUID,
	supervisorChatID int64,
) ([]*models.Quote, error) {
	supervisor, err := s.userRepo.GetByChatID(ctx, supervisorChatID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.SupervisorID != supervisor.ID && supervisor.Role != models.RoleAdmin {
		return nil, s.log.Function("ListForJob").
			ErrorWithType(models.ErrUnauthorized, "job belongs to another supervisor")
	}

	return s.quoteRepo.ListByJob(ctx, jobID)
}

// ActiveQuote returns the subcontractor's live bid on the job, or nil when
// they have none.
func (s *QuoteService) ActiveQuote(
	ctx context.Context,
	jobID uuid.UUID,
	subcontractorChatID int64,
) (*models.Quote, error) {
	sub, err := s.userRepo.GetByChatID(ctx, subcontractorChatID)
	if err != nil {
		return nil, err
	}

	return s.quoteRepo.GetActiveForBidder(ctx, jobID, sub.ID)
}
