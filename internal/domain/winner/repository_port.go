// internal/domain/winner/repository_port.go
package winner

import "context"

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Stages       []Stage
	Wallet       string
	TournamentID string
	Limit        int
}

// UpdateFunc mutates a record inside an atomic read-modify-write.
// A non-nil error aborts the update and nothing is written.
type UpdateFunc func(r *WinnerRecord) error

// Repository は WinnerRecord の永続化ポート。
//   - Update は 1 レコードに対する原子的な read-modify-write を保証すること
//     （Firestore: RunTransaction / SQL: SELECT ... FOR UPDATE）
//   - List は created_at の降順
type Repository interface {
	Create(ctx context.Context, r WinnerRecord) error
	Get(ctx context.Context, winnerID string) (WinnerRecord, error)
	Update(ctx context.Context, winnerID string, fn UpdateFunc) (WinnerRecord, error)
	List(ctx context.Context, f ListFilter) ([]WinnerRecord, error)
}

// Matches reports whether r satisfies the filter.
// 各アダプタのクエリ結果の最終フィルタとしても使う。
func (f ListFilter) Matches(r WinnerRecord) bool {
	if len(f.Stages) > 0 {
		ok := false
		for _, s := range f.Stages {
			if r.Stage == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Wallet != "" && r.RecipientWalletAddress != f.Wallet {
		return false
	}
	if f.TournamentID != "" && r.TournamentID != f.TournamentID {
		return false
	}
	return true
}
