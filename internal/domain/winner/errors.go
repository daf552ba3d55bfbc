package winner

import "errors"

var (
	ErrInvalidWinnerID     = errors.New("winner: invalid winner_id")
	ErrInvalidTournamentID = errors.New("winner: invalid tournament_id")
	ErrInvalidTeamID       = errors.New("winner: invalid team_id")
	ErrInvalidRecipient    = errors.New("winner: invalid recipient_wallet_address")
	ErrInvalidDisplayName  = errors.New("winner: invalid display_name")
	ErrInvalidSourceImage  = errors.New("winner: invalid source_image_url")
	ErrInvalidAttribute    = errors.New("winner: invalid attribute")
	ErrInvalidStage        = errors.New("winner: invalid stage")
	ErrInconsistentState   = errors.New("winner: inconsistent stage / fields")

	ErrNotFound      = errors.New("winner: not found")
	ErrAlreadyExists = errors.New("winner: already exists")

	ErrAlreadyMinted       = errors.New("winner: already minted")
	ErrAttemptInProgress   = errors.New("winner: mint attempt already in progress")
	ErrRequiresManualRetry = errors.New("winner: failed record requires manual retry")
	ErrNotFailed           = errors.New("winner: record is not in Failed stage")
	ErrLeaseLost           = errors.New("winner: attempt lease lost")
	ErrStageRegression     = errors.New("winner: stage regression")
	ErrStageSkipped        = errors.New("winner: stage prerequisites missing")
	ErrFieldConflict       = errors.New("winner: stored field conflicts with new value")
)

// IsValidation reports whether err rejects caller-supplied input.
func IsValidation(err error) bool {
	for _, s := range []error{
		ErrInvalidWinnerID, ErrInvalidTournamentID, ErrInvalidTeamID, ErrInvalidRecipient,
		ErrInvalidDisplayName, ErrInvalidSourceImage, ErrInvalidAttribute, ErrInvalidStage,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
